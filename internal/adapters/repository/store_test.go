package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pinta/internal/domain/model"
)

type seedable interface {
	Store
	InsertCustomer(ctx context.Context, c model.Customer) error
	InsertSales(ctx context.Context, records []model.PurchaseRecord) error
}

func seedLedger(ctx context.Context, s seedable) {
	customers := []model.Customer{
		{ID: "c-1", Name: "Ana Torres", PhoneNumber: model.StringPtr("5551234"), Email: model.StringPtr("ana@bar.cl")},
		{ID: "c-2", Name: "Bruno Diaz", TaxID: model.StringPtr("76.123.456-7")},
		{ID: "c-3", Name: "Carla 100%"},
	}
	for _, c := range customers {
		So(s.InsertCustomer(ctx, c), ShouldBeNil)
	}
	records := []model.PurchaseRecord{
		{CustomerID: "c-1", ProductName: "Lupulo IPA 355ml", Quantity: 2, Timestamp: time.Date(2024, 3, 2, 21, 0, 0, 0, time.UTC)},
		{CustomerID: "c-1", ProductName: "Negra Stout 500ml", Quantity: 1, Timestamp: time.Date(2023, 12, 31, 23, 59, 0, 0, time.UTC)},
		{CustomerID: "c-2", ProductName: "Rubia Lager 330ml", Quantity: 3, Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{CustomerID: "c-2", ProductName: "Refund Lager 330ml", Quantity: 1, Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), DocumentTypeID: 2},
		{CustomerID: "c-1", ProductName: "Mani salado", Quantity: 1, Timestamp: time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)},
	}
	So(s.InsertSales(ctx, records), ShouldBeNil)
}

func storeContract(ctx context.Context, s seedable) {
	seedLedger(ctx, s)

	Convey("Sales filters by document type and returns oldest first", func() {
		got, err := s.Sales(ctx, SalesQuery{})
		So(err, ShouldBeNil)
		So(len(got), ShouldEqual, 4)
		So(got[0].ProductName, ShouldEqual, "Negra Stout 500ml")
		So(got[3].ProductName, ShouldEqual, "Lupulo IPA 355ml")
		for _, r := range got {
			So(r.DocumentTypeID, ShouldEqual, DefaultSaleDocumentTypeID)
		}
	})

	Convey("Sales filters by customer and window", func() {
		got, err := s.Sales(ctx, SalesQuery{CustomerID: "c-1", Window: model.Year(2024, time.UTC)})
		So(err, ShouldBeNil)
		So(len(got), ShouldEqual, 2)
		So(got[0].ProductName, ShouldEqual, "Mani salado")
		So(got[1].Quantity, ShouldEqual, 2)
	})

	Convey("Window bounds are inclusive", func() {
		from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		got, err := s.Sales(ctx, SalesQuery{Window: model.Between(from, from)})
		So(err, ShouldBeNil)
		So(len(got), ShouldEqual, 1)
		So(got[0].CustomerID, ShouldEqual, "c-2")
	})

	Convey("Customer returns identity fields", func() {
		c, err := s.Customer(ctx, "c-1")
		So(err, ShouldBeNil)
		So(c.Name, ShouldEqual, "Ana Torres")
		So(*c.PhoneNumber, ShouldEqual, "5551234")
		So(c.TaxID, ShouldBeNil)
	})

	Convey("Unknown customer yields ErrNotFound", func() {
		_, err := s.Customer(ctx, "missing")
		So(errors.Is(err, ErrNotFound), ShouldBeTrue)
	})

	Convey("SearchCustomers matches any identity field", func() {
		byName, err := s.SearchCustomers(ctx, "ana")
		So(err, ShouldBeNil)
		So(len(byName), ShouldEqual, 1)
		So(byName[0].ID, ShouldEqual, "c-1")

		byTax, err := s.SearchCustomers(ctx, "123.456")
		So(err, ShouldBeNil)
		So(len(byTax), ShouldEqual, 1)
		So(byTax[0].ID, ShouldEqual, "c-2")

		none, err := s.SearchCustomers(ctx, "zzz")
		So(err, ShouldBeNil)
		So(none, ShouldBeEmpty)
	})

	Convey("SearchCustomers treats wildcards literally", func() {
		got, err := s.SearchCustomers(ctx, "100%")
		So(err, ShouldBeNil)
		So(len(got), ShouldEqual, 1)
		So(got[0].ID, ShouldEqual, "c-3")
	})

	Convey("Catalog lists distinct sold products", func() {
		got, err := s.Catalog(ctx)
		So(err, ShouldBeNil)
		So(got, ShouldResemble, []string{"Lupulo IPA 355ml", "Mani salado", "Negra Stout 500ml", "Rubia Lager 330ml"})
	})
}

func TestSQLiteStore(t *testing.T) {
	Convey("Given a SQLite ledger", t, func() {
		ctx := context.Background()
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
		So(err, ShouldBeNil)
		defer s.Close()

		So(s.Ping(ctx), ShouldBeNil)
		storeContract(ctx, s)
	})
}

func TestSQLiteStoreLocation(t *testing.T) {
	Convey("Given a store configured with a local zone", t, func() {
		ctx := context.Background()
		loc := time.FixedZone("CLT", -3*3600)
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"), WithLocation(loc))
		So(err, ShouldBeNil)
		defer s.Close()

		at := time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC)
		So(s.InsertSale(ctx, model.PurchaseRecord{CustomerID: "c-1", ProductName: "Pilsner 330ml", Quantity: 1, Timestamp: at}), ShouldBeNil)

		Convey("Then timestamps come back in that zone", func() {
			got, err := s.Sales(ctx, SalesQuery{})
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 1)
			So(got[0].Timestamp.Location(), ShouldEqual, loc)
			So(got[0].Timestamp.Day(), ShouldEqual, 31)
			So(got[0].Timestamp.Equal(at), ShouldBeTrue)
		})
	})
}

func TestSQLiteStoreClosed(t *testing.T) {
	Convey("Given a closed store", t, func() {
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
		So(err, ShouldBeNil)
		So(s.Close(), ShouldBeNil)

		Convey("Then reads report ErrUnavailable", func() {
			_, err := s.Sales(context.Background(), SalesQuery{})
			So(errors.Is(err, ErrUnavailable), ShouldBeTrue)
			_, err = s.Catalog(context.Background())
			So(errors.Is(err, ErrUnavailable), ShouldBeTrue)
		})
	})
}

func TestMemoryStore(t *testing.T) {
	Convey("Given an in-memory ledger", t, func() {
		ctx := context.Background()
		s := NewMemoryStore()
		storeContract(ctx, s)

		Convey("A configured failure surfaces as ErrUnavailable", func() {
			s.SetFail(errors.New("disk gone"))
			_, err := s.Sales(ctx, SalesQuery{})
			So(errors.Is(err, ErrUnavailable), ShouldBeTrue)
			_, err = s.Customer(ctx, "c-1")
			So(errors.Is(err, ErrUnavailable), ShouldBeTrue)

			Convey("And clearing it restores reads", func() {
				s.SetFail(nil)
				_, err := s.Customer(ctx, "c-1")
				So(err, ShouldBeNil)
			})
		})

		Convey("Failures can be toggled while reads are running", func() {
			var wg sync.WaitGroup
			for i := 0; i < 4; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < 50; j++ {
						_, _ = s.Sales(ctx, SalesQuery{})
					}
				}()
			}
			for j := 0; j < 50; j++ {
				s.SetFail(errors.New("flaky"))
				s.SetFail(nil)
			}
			wg.Wait()
			_, err := s.Catalog(ctx)
			So(err, ShouldBeNil)
		})
	})
}
