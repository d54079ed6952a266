package checkout

import (
	"context"
	"errors"

	"github.com/insaansher/sherpos-terminal/internal/cart"
	"github.com/insaansher/sherpos-terminal/pkg/logger"
)

// Service ties the cart to the dispatcher: finalize, dispatch, and clear the
// cart only once the dispatch reported success (online or queued).
type Service struct {
	cart       *cart.Cart
	dispatcher *Dispatcher
	logg       *logger.Logger
}

type ServiceParams struct {
	Cart       *cart.Cart
	Dispatcher *Dispatcher
	Logger     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Cart == nil {
		return nil, errors.New("cart is required")
	}
	if params.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		cart:       params.Cart,
		dispatcher: params.Dispatcher,
		logg:       params.Logger,
	}, nil
}

// CheckoutCart runs one checkout end to end. A second call while one is in
// flight is refused by the cart's submitting guard; on any error the cart
// keeps its contents so the cashier can correct and retry.
func (s *Service) CheckoutCart(ctx context.Context) (*Receipt, error) {
	if err := s.cart.BeginSubmit(); err != nil {
		return nil, err
	}

	snapshot, err := s.cart.Snapshot()
	if err != nil {
		s.cart.EndSubmit(false)
		return nil, err
	}

	receipt, err := s.dispatcher.Dispatch(ctx, snapshot)
	if err != nil {
		s.cart.EndSubmit(false)
		return nil, err
	}

	s.cart.EndSubmit(true)
	return receipt, nil
}
