package guard

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketloop/cartengine/pkg/config"
	"github.com/marketloop/cartengine/pkg/db/models"
	"github.com/marketloop/cartengine/pkg/enums"
	pkgerrors "github.com/marketloop/cartengine/pkg/errors"
	"github.com/marketloop/cartengine/pkg/types"
)

func testLimits() config.CartConfig {
	return config.CartConfig{
		MaxItems:      3,
		MaxQtyPerItem: 10,
		MaxSellers:    2,
		MaxCartValue:  "1000",
	}
}

func activeCart(owner types.OwnerRef) *models.Cart {
	cart := &models.Cart{
		ID:        uuid.New(),
		Status:    enums.CartStatusActive,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	cart.UserID = owner.UserID
	cart.SessionID = owner.SessionID
	return cart
}

func TestCheckOwnershipMismatch(t *testing.T) {
	t.Parallel()

	g := NewGuard(testLimits())
	cart := activeCart(types.UserOwner(uuid.New()))

	err := g.CheckOwnership(cart, types.UserOwner(uuid.New()))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}

	err = g.CheckOwnership(cart, types.SessionOwner("visitor"))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("session must not access a user cart, got %v", err)
	}
}

func TestCheckOwnershipMatch(t *testing.T) {
	t.Parallel()

	g := NewGuard(testLimits())
	owner := types.SessionOwner("visitor-1")
	cart := activeCart(owner)

	if err := g.CheckOwnership(cart, owner); err != nil {
		t.Fatalf("owner must pass: %v", err)
	}
}

func TestCheckActiveRejectsTerminalStatus(t *testing.T) {
	t.Parallel()

	g := NewGuard(testLimits())
	cart := activeCart(types.SessionOwner("s"))
	cart.Status = enums.CartStatusConverted

	err := g.CheckActive(cart)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCheckActiveRejectsExpired(t *testing.T) {
	t.Parallel()

	g := NewGuard(testLimits())
	cart := activeCart(types.SessionOwner("s"))
	cart.ExpiresAt = time.Now().Add(-time.Minute)

	if err := g.CheckActive(cart); err == nil {
		t.Fatal("expected expired cart to be rejected")
	}
}

func TestCheckLimits(t *testing.T) {
	t.Parallel()

	g := NewGuard(testLimits())
	sellerA, sellerB := uuid.New(), uuid.New()

	cases := []struct {
		name    string
		mutate  func(*models.Cart)
		wantErr bool
	}{
		{
			name: "within limits",
			mutate: func(c *models.Cart) {
				c.Items = []models.CartItem{
					{SellerID: sellerA, Quantity: 5},
					{SellerID: sellerB, Quantity: 2},
				}
				c.GrandTotal = decimal.NewFromInt(500)
			},
		},
		{
			name: "too many lines",
			mutate: func(c *models.Cart) {
				c.Items = make([]models.CartItem, 4)
			},
			wantErr: true,
		},
		{
			name: "per line quantity",
			mutate: func(c *models.Cart) {
				c.Items = []models.CartItem{{SellerID: sellerA, Quantity: 11}}
			},
			wantErr: true,
		},
		{
			name: "too many sellers",
			mutate: func(c *models.Cart) {
				c.Items = []models.CartItem{
					{SellerID: uuid.New(), Quantity: 1},
					{SellerID: uuid.New(), Quantity: 1},
					{SellerID: uuid.New(), Quantity: 1},
				}
			},
			wantErr: true,
		},
		{
			name: "cart value ceiling",
			mutate: func(c *models.Cart) {
				c.Items = []models.CartItem{{SellerID: sellerA, Quantity: 1}}
				c.GrandTotal = decimal.NewFromInt(1001)
			},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cart := activeCart(types.SessionOwner("s"))
			tc.mutate(cart)
			err := g.CheckLimits(cart)
			if tc.wantErr && err == nil {
				t.Fatal("expected limit violation")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
