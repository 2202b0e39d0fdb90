package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// BackfillPinyin 为缺少拼音的证券补齐全拼与首字母，返回更新条数
func (s *StockService) BackfillPinyin(ctx context.Context) (int, error) {
	if !s.translit.Available() {
		s.logger.Warn("拼音功能未启用，跳过回填")
		return 0, nil
	}

	list, err := s.stocks.ListMissingPinyin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: 查询待回填记录失败: %v", ErrStore, err)
	}
	s.logger.Info("开始回填拼音", zap.Int("count", len(list)))

	updated := 0
	for _, info := range list {
		full, abbr := s.translit.Keys(info.Name)
		if full == "" {
			continue
		}
		if err := s.stocks.UpdatePinyin(ctx, info.Code, full, abbr); err != nil {
			return updated, fmt.Errorf("%w: 更新 %s 拼音失败: %v", ErrStore, info.Code, err)
		}
		updated++
		if updated%100 == 0 {
			s.logger.Info("拼音回填进度", zap.Int("updated", updated), zap.Int("total", len(list)))
		}
	}

	s.logger.Info("拼音回填完成", zap.Int("updated", updated))
	return updated, nil
}
