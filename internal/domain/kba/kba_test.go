package kba

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pinta/internal/domain/model"
)

func fullCustomer() model.Customer {
	return model.Customer{
		ID:          "c-1",
		Name:        "Ana",
		PhoneNumber: model.StringPtr("+56 9 8765 4321"),
		TaxID:       model.StringPtr("76.123.456-K"),
		Email:       model.StringPtr("ana.torres@bar.cl"),
	}
}

func TestGenerateProperties(t *testing.T) {
	Convey("Given a seeded generator and a customer with every field", t, func() {
		g := New(WithSeed(42))
		c := fullCustomer()
		onFile := map[FieldType]string{
			FieldPhone: *c.PhoneNumber,
			FieldTaxID: *c.TaxID,
			FieldEmail: *c.Email,
		}

		Convey("Then 1000 challenges all hold three distinct options including the truth", func() {
			fields := make(map[FieldType]int)
			for i := 0; i < 1000; i++ {
				ch, err := g.Generate(c)
				So(err, ShouldBeNil)
				So(len(ch.Options), ShouldEqual, OptionCount)
				So(ch.Options[0] != ch.Options[1] && ch.Options[1] != ch.Options[2] && ch.Options[0] != ch.Options[2], ShouldBeTrue)
				So(ch.Options, ShouldContain, ch.CorrectAnswer)
				So(ch.CorrectAnswer, ShouldEqual, onFile[ch.FieldType])
				So(Verify(ch, ch.CorrectAnswer), ShouldBeTrue)
				for _, o := range ch.Options {
					if o != ch.CorrectAnswer {
						So(Verify(ch, o), ShouldBeFalse)
						So(len([]rune(o)), ShouldEqual, len([]rune(ch.CorrectAnswer)))
					}
				}
				fields[ch.FieldType]++
			}
			So(len(fields), ShouldEqual, 3)
		})
	})
}

func TestGenerateFieldSelection(t *testing.T) {
	Convey("Given a customer with only an email", t, func() {
		c := model.Customer{ID: "c-2", Email: model.StringPtr("bruno@bar.cl")}

		Convey("Then the challenge asks for the email", func() {
			ch, err := New(WithSeed(1)).Generate(c)
			So(err, ShouldBeNil)
			So(ch.FieldType, ShouldEqual, FieldEmail)
			So(ch.Question, ShouldContainSubstring, "correo")
			So(ch.CustomerID, ShouldEqual, "c-2")
			for _, o := range ch.Options {
				So(strings.HasSuffix(o, "@bar.cl"), ShouldBeTrue)
			}
		})
	})

	Convey("Given a customer with no identity fields", t, func() {
		c := model.Customer{ID: "c-3", Name: "Carla", Email: model.StringPtr("  ")}

		Convey("Then no challenge is produced", func() {
			ch, err := New().Generate(c)
			So(ch, ShouldBeNil)
			So(errors.Is(err, ErrNoVerifiableFields), ShouldBeTrue)
		})
	})

	Convey("Given a value too short to yield two decoys", t, func() {
		c := model.Customer{ID: "c-4", TaxID: model.StringPtr("7")}

		Convey("Then generation fails with ErrDecoyGeneration", func() {
			ch, err := New(WithSeed(3)).Generate(c)
			So(ch, ShouldBeNil)
			So(errors.Is(err, ErrDecoyGeneration), ShouldBeTrue)
		})
	})

	Convey("Given a phone with no digits", t, func() {
		c := model.Customer{ID: "c-5", PhoneNumber: model.StringPtr("n/a")}

		Convey("Then generation fails with ErrDecoyGeneration", func() {
			_, err := New(WithSeed(3)).Generate(c)
			So(errors.Is(err, ErrDecoyGeneration), ShouldBeTrue)
		})
	})
}

func TestGenerateDeterminism(t *testing.T) {
	Convey("Given two generators with the same seed and ids", t, func() {
		id := func() string { return "fixed" }
		a := New(WithSeed(7), WithIDFunc(id))
		b := New(WithRand(rand.New(rand.NewSource(7))), WithIDFunc(id))

		Convey("Then they produce the same challenge", func() {
			ca, err := a.Generate(fullCustomer())
			So(err, ShouldBeNil)
			cb, err := b.Generate(fullCustomer())
			So(err, ShouldBeNil)
			So(ca, ShouldResemble, cb)
		})
	})
}

func TestPerturbations(t *testing.T) {
	Convey("Given a random source", t, func() {
		r := rand.New(rand.NewSource(11))

		Convey("Phone decoys change exactly one digit by one", func() {
			got, ok := perturbPhone(r, "555-0199", 0)
			So(ok, ShouldBeTrue)
			So(diffCount(got, "555-0199"), ShouldEqual, 1)
			So(got[3], ShouldEqual, byte('-'))
		})

		Convey("Tax id decoys start at the middle", func() {
			got, ok := perturbTaxID(r, "ABC9XYZ", 0)
			So(ok, ShouldBeTrue)
			So(got, ShouldEqual, "ABC0XYZ")
		})

		Convey("Tax id letters wrap around", func() {
			got, _ := perturbTaxID(r, "z", 0)
			So(got, ShouldEqual, "a")
			got, _ = perturbTaxID(r, "Z", 0)
			So(got, ShouldEqual, "A")
		})

		Convey("Email decoys only touch the local part", func() {
			for i := 0; i < 50; i++ {
				got, ok := perturbEmail(r, "ana@bar.cl", 0)
				So(ok, ShouldBeTrue)
				So(strings.HasSuffix(got, "@bar.cl"), ShouldBeTrue)
				So(diffCount(got, "ana@bar.cl"), ShouldEqual, 1)
			}
		})

		Convey("Email with an empty local part cannot be altered", func() {
			_, ok := perturbEmail(r, "@bar.cl", 0)
			So(ok, ShouldBeFalse)
		})
	})
}

func TestVerify(t *testing.T) {
	Convey("Given a challenge", t, func() {
		ch := &Challenge{CorrectAnswer: "ana@bar.cl"}

		Convey("Then only the exact value verifies", func() {
			So(Verify(ch, "ana@bar.cl"), ShouldBeTrue)
			So(Verify(ch, "ANA@bar.cl"), ShouldBeFalse)
			So(Verify(ch, " ana@bar.cl"), ShouldBeFalse)
			So(Verify(nil, "ana@bar.cl"), ShouldBeFalse)
		})
	})
}

func diffCount(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) != len(rb) {
		return -1
	}
	n := 0
	for i := range ra {
		if ra[i] != rb[i] {
			n++
		}
	}
	return n
}
