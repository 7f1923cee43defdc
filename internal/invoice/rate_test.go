package invoice

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/invoice-review/internal/extraction"
)

func intPtr(n int) *int { return &n }

var _ = Describe("ComputeRecognitionRate", func() {
	var (
		now  time.Time
		full extraction.Fields
	)

	BeforeEach(func() {
		now = time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
		full = extraction.Fields{
			InvoiceNumber: "A-1",
			InvoiceDate:   "2024-03-30",
			Amount:        "19.99",
			Vendor:        "Globex Inc",
		}
	})

	newDoc := func(id string) *Document {
		return NewDocument(Upload{ID: id}, Extraction{Result: extraction.Result{Fields: full}}, now)
	}

	It("should be 0.0% with nothing reviewed", func() {
		rate := ComputeRecognitionRate([]*Document{newDoc("a"), newDoc("b")})
		Expect(rate.Reviewed).To(BeZero())
		Expect(rate.String()).To(Equal("0.0%"))
	})

	It("should be 0.0% with no documents", func() {
		Expect(ComputeRecognitionRate(nil).String()).To(Equal("0.0%"))
	})

	It("should weigh one rejected and one accepted document equally", func() {
		rejected, accepted := newDoc("a"), newDoc("b")
		Expect(rejected.Reject(now)).To(Succeed())
		Expect(accepted.Accept(now)).To(Succeed())

		rate := ComputeRecognitionRate([]*Document{rejected, accepted})
		Expect(rate.Correct).To(Equal(4))
		Expect(rate.Total).To(Equal(8))
		Expect(rate.String()).To(Equal("50.0%"))
	})

	It("should ignore documents awaiting review", func() {
		accepted := newDoc("a")
		Expect(accepted.Accept(now)).To(Succeed())

		rate := ComputeRecognitionRate([]*Document{accepted, newDoc("b")})
		Expect(rate.Reviewed).To(Equal(1))
		Expect(rate.String()).To(Equal("100.0%"))
	})

	It("should format to one decimal", func() {
		edited := newDoc("a")
		final := full
		final.Vendor = "Globex"
		Expect(edited.Edit(final, now)).To(Succeed())
		accepted := newDoc("b")
		Expect(accepted.Accept(now)).To(Succeed())
		rejected := newDoc("c")
		Expect(rejected.Reject(now)).To(Succeed())

		// (3 + 4 + 0) / 12
		Expect(ComputeRecognitionRate([]*Document{edited, accepted, rejected}).String()).To(Equal("58.3%"))
	})

	Describe("stored documents without a change count", func() {
		It("should compare fields with the original snapshot", func() {
			doc := newDoc("a")
			doc.Reviewed = true
			doc.Status = StatusProcessed
			doc.Fields.Amount = "91.99"

			rate := ComputeRecognitionRate([]*Document{doc})
			Expect(rate.Correct).To(Equal(3))
			Expect(rate.PresenceOnly).To(BeZero())
		})

		It("should fall back to counting present fields", func() {
			doc := &Document{
				ID:       "legacy",
				Reviewed: true,
				Status:   StatusProcessed,
				Fields:   extraction.Fields{InvoiceNumber: "L-1", Amount: "5.00"},
			}

			rate := ComputeRecognitionRate([]*Document{doc})
			Expect(rate.Correct).To(Equal(2))
			Expect(rate.PresenceOnly).To(Equal(1))
			Expect(rate.String()).To(Equal("50.0%"))
		})

		It("should still score rejected documents as zero", func() {
			doc := &Document{ID: "legacy", Reviewed: true, Rejected: true, Fields: full}
			Expect(ComputeRecognitionRate([]*Document{doc}).Correct).To(BeZero())
		})
	})

	It("should clamp out-of-range change counts", func() {
		doc := &Document{ID: "odd", Reviewed: true, ChangesCount: intPtr(7)}
		Expect(ComputeRecognitionRate([]*Document{doc}).Correct).To(BeZero())

		doc.ChangesCount = intPtr(-2)
		Expect(ComputeRecognitionRate([]*Document{doc}).Correct).To(Equal(4))
	})
})

var _ = Describe("ComputeStats", func() {
	var docs []*Document

	BeforeEach(func() {
		now := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
		mk := func(id, amount string, seconds, confidence float64) *Document {
			return NewDocument(
				Upload{ID: id},
				Extraction{
					Confidence: confidence,
					Duration:   time.Duration(seconds * float64(time.Second)),
					Result:     extraction.Result{Fields: extraction.Fields{Amount: amount}},
				},
				now,
			)
		}

		pending := mk("a", "100.10", 1.25, 90)
		accepted := mk("b", "20.00", 2.5, 80)
		Expect(accepted.Accept(now)).To(Succeed())
		rejected := mk("c", "n/a", 0.25, 70)
		Expect(rejected.Reject(now)).To(Succeed())

		docs = []*Document{pending, accepted, rejected}
	})

	It("should count documents by status", func() {
		s := ComputeStats(docs)
		Expect(s.Documents).To(Equal(3))
		Expect(s.NeedsReview).To(Equal(1))
		Expect(s.Processed).To(Equal(1))
		Expect(s.Rejected).To(Equal(1))
	})

	It("should sum amounts as total income", func() {
		s := ComputeStats(docs)
		Expect(s.TotalAmount).To(BeNumerically("~", 120.10, 0.001))
		Expect(s.TotalIncome).To(Equal("$120.10"))
	})

	It("should sum processing time", func() {
		Expect(ComputeStats(docs).ProcessingTime).To(Equal("4.0s"))
	})

	It("should average confidence", func() {
		Expect(ComputeStats(docs).AverageConfidence).To(BeNumerically("~", 80, 0.001))
	})

	It("should include the recognition rate", func() {
		s := ComputeStats(docs)
		Expect(s.RecognitionRate).To(Equal("50.0%"))
		Expect(s.RecognitionBreakdown.Reviewed).To(Equal(2))
	})

	It("should report zeros for no documents", func() {
		s := ComputeStats(nil)
		Expect(s.TotalIncome).To(Equal("$0.00"))
		Expect(s.ProcessingTime).To(Equal("0.0s"))
		Expect(s.RecognitionRate).To(Equal("0.0%"))
		Expect(s.AverageConfidence).To(BeZero())
	})

	DescribeTable("parseAmount",
		func(in string, want float64) {
			Expect(parseAmount(in)).To(BeNumerically("~", want, 0.0001))
		},
		Entry("plain", "129.60", 129.60),
		Entry("integer", "42", 42.0),
		Entry("leading decimal", ".5", 0.5),
		Entry("trailing text", "12.5 EUR", 12.5),
		Entry("not a number", "n/a", 0.0),
		Entry("empty", "", 0.0),
	)
})
