// Package pricing resolves registration fees by country or by sport. All
// amounts are integer minor units (cents); nothing here is persisted.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/arena-sports/backend/config"
	"github.com/arena-sports/backend/internal/models"
)

const (
	// MinStudentsPerBatch and MaxStudentsPerBatch bound one checkout batch.
	MinStudentsPerBatch = 1
	MaxStudentsPerBatch = 50
)

var (
	// ErrStudentCount means studentCount is outside [1, 50].
	ErrStudentCount = fmt.Errorf("student count must be between %d and %d", MinStudentsPerBatch, MaxStudentsPerBatch)
	// ErrUnknownCountry means the country is not in the fee table and the
	// default-country fallback is disabled.
	ErrUnknownCountry = errors.New("unknown country")
	// ErrSportNotFound means the sport does not exist.
	ErrSportNotFound = errors.New("sport not found")
)

// Quote is a derived fee calculation for one checkout batch.
type Quote struct {
	Country               string     `json:"country,omitempty"`
	SportID               *uuid.UUID `json:"sport_id,omitempty"`
	Currency              string     `json:"currency"`
	PerStudentFeeCents    int64      `json:"per_student_fee_cents"`
	CertificationFeeCents int64      `json:"certification_fee_cents,omitempty"`
	IncludeCertification  bool       `json:"include_certification"`
	StudentCount          int        `json:"student_count"`
	TotalCents            int64      `json:"total_cents"`
}

// CountryInfo is one public fee-table entry for GET /payment/countries.
type CountryInfo struct {
	Code                  string `json:"code"`
	Name                  string `json:"name"`
	Currency              string `json:"currency"`
	RegistrationFeeCents  int64  `json:"registration_fee_cents"`
	CertificationFeeCents int64  `json:"certification_fee_cents"`
}

// SportStore is the read model the resolver needs for sport-based pricing.
type SportStore interface {
	GetSport(ctx context.Context, id uuid.UUID) (*models.Sport, error)
}

// Resolver calculates quotes from the injected country table or sport fees.
type Resolver struct {
	table  config.PricingConfig
	sports SportStore
}

// NewResolver creates a pricing resolver over the configured fee table.
func NewResolver(table config.PricingConfig, sports SportStore) *Resolver {
	return &Resolver{table: table, sports: sports}
}

// Countries returns the public fee table, sorted by code.
func (r *Resolver) Countries() []CountryInfo {
	out := make([]CountryInfo, 0, len(r.table.Countries))
	for code, entry := range r.table.Countries {
		out = append(out, CountryInfo{
			Code:                  code,
			Name:                  entry.Name,
			Currency:              entry.Currency,
			RegistrationFeeCents:  entry.PerStudentFeeCents,
			CertificationFeeCents: entry.CertificationFeeCents,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// ResolveCountry normalizes a country name to a fee-table entry. Unknown
// countries are an error unless the configured default fallback is enabled.
func (r *Resolver) ResolveCountry(country string) (string, config.CountryPricing, error) {
	key := strings.ToLower(strings.TrimSpace(country))
	if alias, ok := r.table.Aliases[key]; ok {
		key = alias
	}
	if entry, ok := r.table.Countries[key]; ok {
		return key, entry, nil
	}
	if r.table.AllowDefaultCountry {
		if entry, ok := r.table.Countries[r.table.DefaultCountry]; ok {
			return r.table.DefaultCountry, entry, nil
		}
	}
	return "", config.CountryPricing{}, fmt.Errorf("%w: %q", ErrUnknownCountry, country)
}

// CalculateByCountry quotes a batch priced from the country fee table.
func (r *Resolver) CalculateByCountry(country string, includeCertification bool, studentCount int) (Quote, error) {
	if studentCount < MinStudentsPerBatch || studentCount > MaxStudentsPerBatch {
		return Quote{}, ErrStudentCount
	}
	code, entry, err := r.ResolveCountry(country)
	if err != nil {
		return Quote{}, err
	}
	return buildQuote(code, nil, entry.Currency, entry.PerStudentFeeCents, entry.CertificationFeeCents, includeCertification, studentCount), nil
}

// CalculateBySport quotes a batch priced from the sport's configured fee.
func (r *Resolver) CalculateBySport(ctx context.Context, sportID uuid.UUID, includeCertification bool, studentCount int) (Quote, error) {
	if studentCount < MinStudentsPerBatch || studentCount > MaxStudentsPerBatch {
		return Quote{}, ErrStudentCount
	}
	sport, err := r.sports.GetSport(ctx, sportID)
	if err != nil || sport == nil {
		return Quote{}, ErrSportNotFound
	}
	return buildQuote("", &sport.ID, sport.FeeCurrency, sport.PerStudentFeeCents, 0, includeCertification, studentCount), nil
}

func buildQuote(country string, sportID *uuid.UUID, currency string, perStudent, certFee int64, includeCertification bool, studentCount int) Quote {
	n := int64(studentCount)
	total := perStudent * n
	if includeCertification {
		total += certFee * n
	}
	return Quote{
		Country:               country,
		SportID:               sportID,
		Currency:              currency,
		PerStudentFeeCents:    perStudent,
		CertificationFeeCents: certFee,
		IncludeCertification:  includeCertification,
		StudentCount:          studentCount,
		TotalCents:            total,
	}
}
