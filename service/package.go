package service

import (
	"Recharge/dao"
	"Recharge/models"
	"Recharge/types"
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type PackageService struct {
	PackageDAO *dao.PaymentPackage
}

var _ IPackageService = (*PackageService)(nil)

type IPackageService interface {
	// GetPurchasablePackage 不存在或已下架都返回 ErrPackageNotFound
	GetPurchasablePackage(ctx context.Context, packageID uint64) (*models.PaymentPackage, error)
	ListPackages(ctx context.Context) ([]types.Package, error)
}

func (p *PackageService) GetPurchasablePackage(ctx context.Context, packageID uint64) (*models.PaymentPackage, error) {
	pkg, err := p.PackageDAO.FindByID(ctx, packageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrPackageNotFound, packageID)
		}
		return nil, err
	}
	if !pkg.IsActive {
		return nil, fmt.Errorf("%w: %d is inactive", ErrPackageNotFound, packageID)
	}
	return pkg, nil
}

func (p *PackageService) ListPackages(ctx context.Context) ([]types.Package, error) {
	items, err := p.PackageDAO.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	resp := make([]types.Package, 0, len(items))
	for _, item := range items {
		resp = append(resp, types.Package{
			ID:          item.ID,
			Name:        item.Name,
			Description: item.Description,
			Price:       item.Price.StringFixed(2),
			Points:      item.Points,
			BonusPoints: item.BonusPoints,
		})
	}
	return resp, nil
}
