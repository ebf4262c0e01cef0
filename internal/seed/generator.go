package seed

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okian/pinta/internal/domain/model"
	"github.com/okian/pinta/internal/domain/normalize"
)

// Field presence rates for generated customers.
const (
	phoneRate    = 0.8
	taxIDRate    = 0.6
	emailRate    = 0.7
	favoriteRate = 0.5
	otherDocRate = 0.05
	maxLines     = 3
	maxQuantity  = 4
	openingHour  = 17
	openHours    = 7
)

var firstNames = []string{
	"Ana", "Bruno", "Carla", "Diego", "Elena", "Felipe", "Gabriela", "Hugo",
	"Isabel", "Javier", "Karen", "Luis", "Marta", "Nicolas", "Olga", "Pablo",
}

var lastNames = []string{
	"Torres", "Rojas", "Munoz", "Soto", "Contreras", "Silva", "Sepulveda",
	"Morales", "Lopez", "Fuentes", "Araya", "Espinoza",
}

// Products is the bar menu sales are drawn from. Snacks carry no volume.
var Products = []string{
	"Lupulo IPA 355ml",
	"Hazy IPA 473ml",
	"Rubia Lager 330ml",
	"Lager Especial 500ml",
	"Negra Stout 500ml",
	"Porter Ahumada 330ml",
	"Pilsner Checa 330ml",
	"Amber Ale 473ml",
	"Red Ale 355ml",
	"Sidra Artesanal 330ml",
	"Mani salado",
	"Papas fritas",
}

// Generator builds deterministic synthetic ledgers.
type Generator struct {
	rng *rand.Rand
	cfg *Config
}

// NewGenerator creates a generator seeded from cfg.Seed.
func NewGenerator(cfg *Config) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(cfg.Seed)), cfg: cfg}
}

// Generate produces the customers and a year of ledger lines for them.
// Records are ordered by time.
func (g *Generator) Generate() Ledger {
	var l Ledger
	l.Customers = make([]model.Customer, g.cfg.Customers)
	for i := range l.Customers {
		l.Customers[i] = g.customer(i)
		l.Records = append(l.Records, g.sales(l.Customers[i].ID)...)
	}
	sort.SliceStable(l.Records, func(i, j int) bool {
		return l.Records[i].Timestamp.Before(l.Records[j].Timestamp)
	})
	return l
}

func (g *Generator) customer(i int) model.Customer {
	id, err := uuid.NewRandomFromReader(g.rng)
	if err != nil {
		id = uuid.New()
	}
	first := firstNames[g.rng.Intn(len(firstNames))]
	last := lastNames[g.rng.Intn(len(lastNames))]

	c := model.Customer{ID: id.String(), Name: first + " " + last}
	if g.rng.Float64() < phoneRate {
		c.PhoneNumber = model.StringPtr(fmt.Sprintf("+56 9 %04d %04d", g.rng.Intn(10000), g.rng.Intn(10000)))
	}
	if g.rng.Float64() < taxIDRate {
		c.TaxID = model.StringPtr(g.taxID())
	}
	if g.rng.Float64() < emailRate {
		c.Email = model.StringPtr(fmt.Sprintf("%s.%s%d@bar.cl", strings.ToLower(first), strings.ToLower(last), i))
	}
	return c
}

// taxID formats a RUT-like identifier: 12.345.678-K.
func (g *Generator) taxID() string {
	n := 1_000_000 + g.rng.Intn(25_000_000)
	checks := "0123456789K"
	return fmt.Sprintf("%d.%03d.%03d-%c", n/1_000_000, n/1000%1000, n%1000, checks[g.rng.Intn(len(checks))])
}

func (g *Generator) sales(customerID string) []model.PurchaseRecord {
	favorite := Products[g.rng.Intn(len(Products))]
	visits := 1 + g.rng.Intn(g.cfg.MaxVisits)
	start := time.Date(g.cfg.Year, time.January, 1, 0, 0, 0, 0, g.cfg.Location)
	days := start.AddDate(1, 0, 0).Sub(start).Hours() / 24

	var out []model.PurchaseRecord
	for v := 0; v < visits; v++ {
		day := start.AddDate(0, 0, g.rng.Intn(int(days)))
		at := day.Add(time.Duration(openingHour+g.rng.Intn(openHours))*time.Hour +
			time.Duration(g.rng.Intn(60))*time.Minute)

		lines := 1 + g.rng.Intn(maxLines)
		for n := 0; n < lines; n++ {
			product := favorite
			if g.rng.Float64() >= favoriteRate {
				product = Products[g.rng.Intn(len(Products))]
			}
			docType := g.cfg.SaleDocumentTypeID
			if g.rng.Float64() < otherDocRate {
				docType++
			}
			out = append(out, model.PurchaseRecord{
				CustomerID:     customerID,
				ProductName:    product,
				Quantity:       1 + g.rng.Intn(maxQuantity),
				Timestamp:      at.Add(time.Duration(n) * time.Minute),
				DocumentTypeID: docType,
			})
		}
	}
	return out
}

// countUnmeasured reports sale lines with no parseable volume.
func countUnmeasured(records []model.PurchaseRecord, saleType int) int {
	n := 0
	for _, r := range records {
		if r.DocumentTypeID != saleType {
			continue
		}
		if _, ok := normalize.ParseVolume(r.ProductName); !ok {
			n++
		}
	}
	return n
}
