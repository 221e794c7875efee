package checkout

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"storefront-system/internal/commerce"
	"storefront-system/internal/events"
)

// AffiliateLedger is an affiliate's commission history with running totals.
type AffiliateLedger struct {
	AffiliateID string                `json:"AffiliateId"`
	Commissions []commerce.Commission `json:"Commissions"`
	Pending     decimal.Decimal       `json:"PendingAmount"`
	Paid        decimal.Decimal       `json:"PaidAmount"`
	Total       decimal.Decimal       `json:"TotalAmount"`
}

// MarkCommissionPaid records the payout of one commission. Marking a paid
// commission again returns it unchanged.
func (s *Service) MarkCommissionPaid(ctx context.Context, commissionID string) (*commerce.Commission, error) {
	if commissionID == "" {
		return nil, commerce.InvalidInput("commission id required", "commission_id")
	}
	commission, err := s.getCommission(ctx, commissionID)
	if err != nil {
		return nil, err
	}
	if commission.IsPaid {
		return commission, nil
	}

	paidAt := s.now()
	if err := s.bounded(ctx, func(ctx context.Context) error {
		return s.repos.Commissions.MarkPaid(ctx, commissionID, paidAt)
	}); err != nil {
		return nil, classifyWrite(err)
	}

	log.Info().
		Str("commission_id", commissionID).
		Str("affiliate_id", commission.AffiliateID).
		Str("amount", commission.Amount.StringFixed(2)).
		Msg("commission paid")
	s.publish(ctx, events.Event{
		Type:         events.CommissionPaid,
		OrderID:      commission.OrderID,
		AffiliateID:  commission.AffiliateID,
		CommissionID: commissionID,
		Commission:   commission.Amount.StringFixed(2),
	})

	return s.getCommission(ctx, commissionID)
}

func (s *Service) getCommission(ctx context.Context, id string) (*commerce.Commission, error) {
	var commission *commerce.Commission
	err := s.bounded(ctx, func(ctx context.Context) error {
		var err error
		commission, err = s.repos.Commissions.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, wrapRead("commission", err)
	}
	return commission, nil
}

// ListAffiliateCommissions returns the affiliate's commissions, newest first.
func (s *Service) ListAffiliateCommissions(ctx context.Context, affiliateID string) (*AffiliateLedger, error) {
	if affiliateID == "" {
		return nil, commerce.InvalidInput("affiliate id required", "affiliate_id")
	}
	var list []commerce.Commission
	err := s.bounded(ctx, func(ctx context.Context) error {
		var err error
		list, err = s.repos.Commissions.ListByAffiliate(ctx, affiliateID)
		return err
	})
	if err != nil {
		return nil, wrapRead("commissions", err)
	}

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})

	ledger := &AffiliateLedger{
		AffiliateID: affiliateID,
		Commissions: list,
		Pending:     decimal.Zero,
		Paid:        decimal.Zero,
	}
	if ledger.Commissions == nil {
		ledger.Commissions = []commerce.Commission{}
	}
	for _, c := range list {
		if c.IsPaid {
			ledger.Paid = ledger.Paid.Add(c.Amount)
		} else {
			ledger.Pending = ledger.Pending.Add(c.Amount)
		}
	}
	ledger.Total = ledger.Paid.Add(ledger.Pending)
	return ledger, nil
}
