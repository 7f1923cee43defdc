package invoice

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/invoice-review/internal/extraction"
)

var _ = Describe("ReviewWorkflow", func() {
	var (
		doc      *Document
		original extraction.Fields
		created  time.Time
		now      time.Time
	)

	BeforeEach(func() {
		original = extraction.Fields{
			InvoiceNumber: "INV-100",
			InvoiceDate:   "2024-01-31",
			Amount:        "250.00",
			Vendor:        "Northwind Traders",
		}
		created = time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
		now = created.Add(2 * time.Hour)
		doc = NewDocument(
			Upload{ID: "doc-1"},
			Extraction{Result: extraction.Result{Fields: original}},
			created,
		)
	})

	It("should start unreviewed", func() {
		Expect(doc.Status).To(Equal(StatusNeedsReview))
		Expect(doc.Reviewed).To(BeFalse())
		Expect(doc.Accuracy).To(BeZero())
		Expect(doc.ChangesCount).To(BeNil())
		Expect(doc.ReviewedAt).To(BeNil())
	})

	It("should snapshot the original values by value", func() {
		doc.Fields.Amount = "999.99"
		Expect(doc.Original.Amount).To(Equal("250.00"))
	})

	Describe("Accept", func() {
		It("should mark the document fully correct", func() {
			Expect(doc.Accept(now)).To(Succeed())
			Expect(doc.Status).To(Equal(StatusProcessed))
			Expect(doc.Reviewed).To(BeTrue())
			Expect(doc.Rejected).To(BeFalse())
			Expect(doc.Accuracy).To(Equal(100.0))
			Expect(*doc.ChangesCount).To(Equal(0))
			Expect(*doc.ReviewedAt).To(Equal(now))
			Expect(doc.UpdatedAt).To(Equal(now))
		})

		When("every field was absent", func() {
			BeforeEach(func() {
				doc = NewDocument(Upload{ID: "doc-2"}, Extraction{}, created)
			})

			It("should still score 100", func() {
				Expect(doc.Accept(now)).To(Succeed())
				Expect(doc.Accuracy).To(Equal(100.0))
				Expect(*doc.ChangesCount).To(Equal(0))
			})
		})
	})

	Describe("Edit", func() {
		It("should agree with Accept when nothing changes", func() {
			accepted := *doc
			Expect(accepted.Accept(now)).To(Succeed())

			Expect(doc.Edit(original, now)).To(Succeed())
			Expect(doc.Accuracy).To(Equal(accepted.Accuracy))
			Expect(*doc.ChangesCount).To(Equal(*accepted.ChangesCount))
			Expect(doc.Status).To(Equal(accepted.Status))
		})

		It("should score zero when every field changes", func() {
			Expect(doc.Edit(extraction.Fields{
				InvoiceNumber: "INV-101",
				InvoiceDate:   "2024-02-01",
				Amount:        "25.00",
				Vendor:        "Contoso",
			}, now)).To(Succeed())
			Expect(doc.Accuracy).To(BeZero())
			Expect(*doc.ChangesCount).To(Equal(4))
			Expect(doc.Status).To(Equal(StatusProcessed))
		})

		It("should count partial corrections", func() {
			final := original
			final.Vendor = "Northwind Traders Ltd"
			Expect(doc.Edit(final, now)).To(Succeed())
			Expect(doc.Accuracy).To(Equal(75.0))
			Expect(*doc.ChangesCount).To(Equal(1))
		})

		It("should store the final values and keep the originals", func() {
			final := original
			final.Amount = "205.00"
			Expect(doc.Edit(final, now)).To(Succeed())
			Expect(doc.Fields.Amount).To(Equal("205.00"))
			Expect(*doc.Original).To(Equal(original))
		})

		It("should trim submitted values", func() {
			final := original
			final.Vendor = "  Northwind Traders \n"
			Expect(doc.Edit(final, now)).To(Succeed())
			Expect(doc.Fields.Vendor).To(Equal("Northwind Traders"))
			Expect(doc.Accuracy).To(Equal(100.0))
		})

		When("a field was absent and stays blank", func() {
			BeforeEach(func() {
				missing := original
				missing.Vendor = ""
				doc = NewDocument(Upload{ID: "doc-3"}, Extraction{Result: extraction.Result{Fields: missing}}, created)
			})

			It("should count the blank as correct", func() {
				final := original
				final.Vendor = "   "
				Expect(doc.Edit(final, now)).To(Succeed())
				Expect(doc.Accuracy).To(Equal(100.0))
			})
		})

		When("the document predates snapshots", func() {
			BeforeEach(func() {
				doc.Original = nil
			})

			It("should compare with the current fields", func() {
				final := original
				final.InvoiceDate = "2024-02-29"
				Expect(doc.Edit(final, now)).To(Succeed())
				Expect(doc.Accuracy).To(Equal(75.0))
			})
		})
	})

	Describe("Reject", func() {
		It("should mark the document unusable", func() {
			Expect(doc.Reject(now)).To(Succeed())
			Expect(doc.Status).To(Equal(StatusRejected))
			Expect(doc.Reviewed).To(BeTrue())
			Expect(doc.Rejected).To(BeTrue())
			Expect(doc.Accuracy).To(BeZero())
			Expect(*doc.ChangesCount).To(Equal(4))
		})

		It("should leave the fields untouched", func() {
			Expect(doc.Reject(now)).To(Succeed())
			Expect(doc.Fields).To(Equal(original))
		})
	})

	DescribeTable("transitions out of a final state",
		func(first, second func(*Document) error) {
			Expect(first(doc)).To(Succeed())
			before := *doc

			err := second(doc)
			Expect(errors.Is(err, ErrInvalidTransition)).To(BeTrue())
			Expect(doc.Status).To(Equal(before.Status))
			Expect(doc.Accuracy).To(Equal(before.Accuracy))
		},
		Entry("accept then reject",
			func(d *Document) error { return d.Accept(time.Now()) },
			func(d *Document) error { return d.Reject(time.Now()) }),
		Entry("reject then accept",
			func(d *Document) error { return d.Reject(time.Now()) },
			func(d *Document) error { return d.Accept(time.Now()) }),
		Entry("accept then edit",
			func(d *Document) error { return d.Accept(time.Now()) },
			func(d *Document) error { return d.Edit(extraction.Fields{}, time.Now()) }),
		Entry("reject then edit",
			func(d *Document) error { return d.Reject(time.Now()) },
			func(d *Document) error { return d.Edit(extraction.Fields{}, time.Now()) }),
	)

	Describe("Status", func() {
		It("should know its states", func() {
			Expect(StatusNeedsReview.Valid()).To(BeTrue())
			Expect(StatusProcessed.Valid()).To(BeTrue())
			Expect(StatusRejected.Valid()).To(BeTrue())
			Expect(Status("archived").Valid()).To(BeFalse())
		})
	})
})
