package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-sewa/internal/availability"
	"github.com/noah-isme/backend-sewa/internal/pricing"
)

func newService(t *testing.T) (*Service, *availability.MemStore) {
	t.Helper()
	subjects := availability.NewMemStore()
	return &Service{
		Store:    NewMemStore(),
		Validate: validator.New(),
		Subjects: subjects,
		Now:      func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) },
	}, subjects
}

func dailyRates(price pricing.Money) pricing.RateTable {
	return pricing.RateTable{
		pricing.UnitDaily: {Unit: pricing.UnitDaily, Price: price},
	}
}

func TestCreateProductRegistersSubjectPool(t *testing.T) {
	svc, subjects := newService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, CreateProductInput{
		Slug:            "Trek-Bike",
		Title:           "Trek mountain bike",
		Rates:           dailyRates(15000),
		SecurityDeposit: 50000,
		QtyOnHand:       3,
		Active:          true,
	})
	require.NoError(t, err)
	require.Equal(t, "trek-bike", product.Slug)

	subject, err := subjects.GetSubject(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, 3, subject.TotalQty)
}

func TestCreateProductRejectsDuplicateSlug(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	in := CreateProductInput{Slug: "tent", Title: "Camping tent", Rates: dailyRates(8000), QtyOnHand: 1}
	_, err := svc.CreateProduct(ctx, in)
	require.NoError(t, err)
	_, err = svc.CreateProduct(ctx, in)
	require.ErrorIs(t, err, ErrSlugTaken)
}

func TestCreateProductValidatesInput(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.CreateProduct(context.Background(), CreateProductInput{Slug: "x", Title: ""})
	require.Error(t, err)

	_, err = svc.CreateProduct(context.Background(), CreateProductInput{
		Slug:  "bad-rates",
		Title: "Bad rates",
		Rates: pricing.RateTable{pricing.UnitDaily: {Unit: pricing.UnitDaily, Price: -1}},
	})
	require.Error(t, err)
}

func TestUpdateProductResizesPool(t *testing.T) {
	svc, subjects := newService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, CreateProductInput{
		Slug: "kayak", Title: "Sea kayak", Rates: dailyRates(20000), QtyOnHand: 5, Active: true,
	})
	require.NoError(t, err)

	updated, err := svc.UpdateProduct(ctx, product.ID, UpdateProductInput{
		Title: "Sea kayak", Rates: dailyRates(22000), QtyOnHand: 2, Active: true,
	})
	require.NoError(t, err)
	require.Equal(t, 2, updated.QtyOnHand)

	subject, err := subjects.GetSubject(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, 2, subject.TotalQty)
}

func TestTermsVariantInheritsProductRates(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, CreateProductInput{
		Slug: "drill", Title: "Hammer drill", Rates: dailyRates(5000), SecurityDeposit: 20000, QtyOnHand: 4, Active: true,
	})
	require.NoError(t, err)

	inherited, err := svc.AddVariant(ctx, product.ID, CreateVariantInput{Title: "18V", QtyOnHand: 2, Active: true})
	require.NoError(t, err)
	overridden, err := svc.AddVariant(ctx, product.ID, CreateVariantInput{
		Title: "24V", Rates: dailyRates(7000), QtyOnHand: 2, Active: true,
	})
	require.NoError(t, err)

	terms, err := svc.Terms(ctx, inherited.ID)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(5000), terms.Rates[pricing.UnitDaily].Price)
	require.Equal(t, pricing.Money(20000), terms.SecurityDeposit)

	terms, err = svc.Terms(ctx, overridden.ID)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(7000), terms.Rates[pricing.UnitDaily].Price)

	terms, err = svc.Terms(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, product.ID, terms.SubjectID)
}

func TestGetDetailIncludesVariants(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, CreateProductInput{
		Slug: "canoe", Title: "Canoe", Rates: dailyRates(12000), QtyOnHand: 2, Active: true,
	})
	require.NoError(t, err)
	_, err = svc.AddVariant(ctx, product.ID, CreateVariantInput{Title: "Two-seater", QtyOnHand: 1, Active: true})
	require.NoError(t, err)

	detail, err := svc.GetDetail(ctx, "canoe")
	require.NoError(t, err)
	require.Equal(t, product.ID, detail.ID)
	require.Len(t, detail.Variants, 1)
}
