package memory

import (
	"context"
	"sort"
	"time"

	"teamnet-backend/internal/domain"
)

type paymentRepository struct {
	g *guard
}

func findByKey(st *state, key domain.LookupKey) (domain.PaymentRecord, bool) {
	for _, p := range st.payments {
		switch {
		case key.OrderID != "" && p.OrderID == key.OrderID,
			key.InvoiceID != "" && p.InvoiceID == key.InvoiceID,
			key.PaymentID != "" && p.PaymentID == key.PaymentID:
			return p, true
		}
	}
	return domain.PaymentRecord{}, false
}

func checkProviderRefs(st *state, p *domain.PaymentRecord) error {
	for id, other := range st.payments {
		if id == p.ID {
			continue
		}
		if (p.InvoiceID != "" && other.InvoiceID == p.InvoiceID) ||
			(p.PaymentID != "" && other.PaymentID == p.PaymentID) {
			return domain.Errorf(domain.KindAlreadyExists, "payment already exists")
		}
	}
	return nil
}

func (r *paymentRepository) Create(ctx context.Context, p *domain.PaymentRecord) error {
	return r.g.do(func(st *state) error {
		for _, other := range st.payments {
			if other.OrderID == p.OrderID {
				return domain.Errorf(domain.KindDuplicateOrder, "order id already exists")
			}
			if p.Purpose != "" && other.Status == domain.PaymentPending &&
				other.MemberID == p.MemberID && other.Purpose == p.Purpose {
				return domain.Errorf(domain.KindConflictingPendingIntent, "a pending payment already exists for this purpose")
			}
		}
		if err := checkProviderRefs(st, p); err != nil {
			return err
		}
		if _, ok := st.members[p.MemberID]; !ok {
			return domain.Errorf(domain.KindNotFound, "referenced record not found")
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = r.g.now()
		}
		if p.Metadata.Events == nil {
			p.Metadata.Events = []domain.StatusEvent{}
		}
		st.payments[p.ID] = copyPayment(*p)
		return nil
	})
}

func (r *paymentRepository) Get(ctx context.Context, key domain.LookupKey) (*domain.PaymentRecord, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	var out *domain.PaymentRecord
	err := r.g.do(func(st *state) error {
		p, ok := findByKey(st, key)
		if !ok {
			return notFound("payment")
		}
		c := copyPayment(p)
		out = &c
		return nil
	})
	return out, err
}

func (r *paymentRepository) GetForUpdate(ctx context.Context, key domain.LookupKey) (*domain.PaymentRecord, error) {
	return r.Get(ctx, key)
}

func (r *paymentRepository) FindPendingByPurpose(ctx context.Context, memberID, purpose string) (*domain.PaymentRecord, error) {
	var out *domain.PaymentRecord
	err := r.g.do(func(st *state) error {
		for _, p := range st.payments {
			if p.MemberID == memberID && p.Purpose == purpose && p.Status == domain.PaymentPending {
				c := copyPayment(p)
				out = &c
				return nil
			}
		}
		return notFound("pending payment")
	})
	return out, err
}

func (r *paymentRepository) Update(ctx context.Context, p *domain.PaymentRecord) error {
	return r.g.do(func(st *state) error {
		if _, ok := st.payments[p.ID]; !ok {
			return notFound("payment")
		}
		if err := checkProviderRefs(st, p); err != nil {
			return err
		}
		st.payments[p.ID] = copyPayment(*p)
		return nil
	})
}

func (r *paymentRepository) ListByMember(ctx context.Context, memberID string, page, pageSize int32) ([]domain.PaymentRecord, int32, error) {
	var all []domain.PaymentRecord
	err := r.g.do(func(st *state) error {
		for _, p := range st.payments {
			if p.MemberID == memberID {
				all = append(all, copyPayment(p))
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	total := int32(len(all))
	start := (page - 1) * pageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *paymentRepository) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]domain.PaymentRecord, error) {
	var out []domain.PaymentRecord
	err := r.g.do(func(st *state) error {
		for _, p := range st.payments {
			if p.Status == domain.PaymentPending && !p.CreatedAt.After(olderThan) && p.HasProviderRef() {
				out = append(out, copyPayment(p))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r *paymentRepository) Statistics(ctx context.Context) (*domain.PaymentStatistics, error) {
	s := &domain.PaymentStatistics{
		ByStatus:           map[domain.PaymentStatus]int64{},
		PaymentsByProvider: map[string]int64{},
	}
	err := r.g.do(func(st *state) error {
		for _, p := range st.payments {
			s.TotalPayments++
			s.TotalAmount += p.Amount
			s.ByStatus[p.Status]++
			s.PaymentsByProvider[p.Provider]++
		}
		return nil
	})
	s.CompletedPayments = s.ByStatus[domain.PaymentFinished]
	s.PendingPayments = s.ByStatus[domain.PaymentPending]
	s.FailedPayments = s.ByStatus[domain.PaymentFailed]
	return s, err
}
