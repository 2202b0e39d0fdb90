package service

import (
	"context"
	"fmt"

	"stock_analysis/internal/models"
)

// List 列出证券，stockType 为空时返回全部
func (s *StockService) List(ctx context.Context, stockType string) ([]models.StockInfo, error) {
	list, err := s.stocks.List(ctx, stockType)
	if err != nil {
		return nil, fmt.Errorf("%w: 查询证券列表失败: %v", ErrStore, err)
	}
	return list, nil
}

// Search 按代码、名称、拼音搜索，结果已排序且最多 50 条
func (s *StockService) Search(ctx context.Context, keyword string) ([]models.StockInfo, error) {
	list, err := s.stocks.Search(ctx, keyword)
	if err != nil {
		return nil, fmt.Errorf("%w: 搜索证券失败: %v", ErrStore, err)
	}
	return list, nil
}

// ResolveName 取规范代码对应的名称，无匹配时返回代码本身
func (s *StockService) ResolveName(ctx context.Context, code string) (string, error) {
	list, err := s.Search(ctx, code)
	if err != nil {
		return "", err
	}
	if len(list) > 0 && list[0].Code == code {
		return list[0].Name, nil
	}
	return code, nil
}
