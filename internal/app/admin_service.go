package app

import (
	"context"

	"github.com/dealmatch/groupbuy/services/api/internal/clock"
	"github.com/dealmatch/groupbuy/services/api/internal/domain"
)

type AdminRepository interface {
	CreateBuyer(ctx context.Context, buyer domain.Buyer) error
	CreateSeller(ctx context.Context, seller domain.Seller) error
	CreateDeal(ctx context.Context, deal domain.Deal) error
	CreateOffer(ctx context.Context, offer domain.Offer) error
	ListOffersByDeal(ctx context.Context, dealID string) ([]domain.Offer, error)
	MarkSettled(ctx context.Context, reservationID string) error
}

// HolidayStore persists the dates WorkingTime treats as dead time.
type HolidayStore interface {
	AddHoliday(d clock.Date, name string) error
	RemoveHoliday(d clock.Date) error
	ListHolidays(year int) ([]clock.Holiday, error)
}

type AdminService struct {
	repo     AdminRepository
	holidays HolidayStore
	clock    clock.Clock
}

func NewAdminService(repo AdminRepository, holidays HolidayStore, clk clock.Clock) *AdminService {
	return &AdminService{
		repo:     repo,
		holidays: holidays,
		clock:    clk,
	}
}

var errNameRequired = domain.Validation("name_required", "name required")

func (s *AdminService) CreateBuyer(ctx context.Context, name string) (domain.Buyer, error) {
	if name == "" {
		return domain.Buyer{}, errNameRequired
	}
	buyer := domain.Buyer{ID: newID(), Name: name}
	if err := s.repo.CreateBuyer(ctx, buyer); err != nil {
		return domain.Buyer{}, err
	}
	return buyer, nil
}

func (s *AdminService) CreateSeller(ctx context.Context, name string) (domain.Seller, error) {
	if name == "" {
		return domain.Seller{}, errNameRequired
	}
	seller := domain.Seller{ID: newID(), Name: name}
	if err := s.repo.CreateSeller(ctx, seller); err != nil {
		return domain.Seller{}, err
	}
	return seller, nil
}

type CreateDealInput struct {
	HostBuyerID string
	ProductName string
	DesiredQty  int
}

func (s *AdminService) CreateDeal(ctx context.Context, in CreateDealInput) (domain.Deal, error) {
	if in.HostBuyerID == "" {
		return domain.Deal{}, domain.ErrInvalidID
	}
	if in.ProductName == "" {
		return domain.Deal{}, errNameRequired.Withf("product name required")
	}
	if in.DesiredQty <= 0 {
		return domain.Deal{}, domain.ErrInvalidQuantity
	}

	deal := domain.Deal{
		ID:          newID(),
		HostBuyerID: in.HostBuyerID,
		ProductName: in.ProductName,
		DesiredQty:  in.DesiredQty,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.repo.CreateDeal(ctx, deal); err != nil {
		return domain.Deal{}, err
	}
	return deal, nil
}

type CreateOfferInput struct {
	DealID                    string
	SellerID                  string
	TotalCapacity             int
	UnitPrice                 int64
	ShippingMode              string
	ShippingFeePerReservation int64
	ShippingFeePerQty         int64
}

func (s *AdminService) CreateOffer(ctx context.Context, in CreateOfferInput) (domain.Offer, error) {
	if in.DealID == "" || in.SellerID == "" {
		return domain.Offer{}, domain.ErrInvalidID
	}
	if in.TotalCapacity <= 0 {
		return domain.Offer{}, domain.ErrInvalidQuantity.Withf("total capacity must be positive")
	}
	if in.UnitPrice < 0 || in.ShippingFeePerReservation < 0 || in.ShippingFeePerQty < 0 {
		return domain.Offer{}, domain.ErrInvalidAmount
	}

	offer := domain.Offer{
		ID:                        newID(),
		DealID:                    in.DealID,
		SellerID:                  in.SellerID,
		TotalCapacity:             in.TotalCapacity,
		UnitPrice:                 in.UnitPrice,
		ShippingMode:              domain.ParseShippingMode(in.ShippingMode),
		ShippingFeePerReservation: in.ShippingFeePerReservation,
		ShippingFeePerQty:         in.ShippingFeePerQty,
		CreatedAt:                 s.clock.Now(),
	}
	if err := s.repo.CreateOffer(ctx, offer); err != nil {
		return domain.Offer{}, err
	}
	return offer, nil
}

func (s *AdminService) ListOffers(ctx context.Context, dealID string) ([]domain.Offer, error) {
	if dealID == "" {
		return nil, domain.ErrInvalidID
	}
	return s.repo.ListOffersByDeal(ctx, dealID)
}

// MarkSettled records that the seller has been paid out. Later refunds
// of the reservation recover the money from the seller.
func (s *AdminService) MarkSettled(ctx context.Context, reservationID string) error {
	if reservationID == "" {
		return domain.ErrInvalidID
	}
	return s.repo.MarkSettled(ctx, reservationID)
}

func (s *AdminService) AddHoliday(ctx context.Context, date, name string) (clock.Holiday, error) {
	d, err := clock.ParseDate(date)
	if err != nil {
		return clock.Holiday{}, err
	}
	if err := s.holidays.AddHoliday(d, name); err != nil {
		return clock.Holiday{}, err
	}
	return clock.Holiday{Date: d, Name: name}, nil
}

func (s *AdminService) RemoveHoliday(ctx context.Context, date string) error {
	d, err := clock.ParseDate(date)
	if err != nil {
		return err
	}
	return s.holidays.RemoveHoliday(d)
}

func (s *AdminService) ListHolidays(ctx context.Context, year int) ([]clock.Holiday, error) {
	return s.holidays.ListHolidays(year)
}
