package invoice

import (
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/invoice-review/internal/extraction"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
		now    time.Time
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
		now = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	newDoc := func(id string, uploadedAt time.Time) *Document {
		return NewDocument(
			Upload{ID: id, Name: id + ".pdf", Filename: id + "_inv.pdf", UploadedAt: uploadedAt},
			Extraction{
				Text:       "Invoice No: " + id,
				Confidence: 95,
				Method:     "pdf-text",
				Result: extraction.Result{Fields: extraction.Fields{
					InvoiceNumber: id,
					Amount:        "10.00",
				}},
			},
			now,
		)
	}

	Describe("SaveDocument", func() {
		var (
			doc *Document
			err error
		)

		BeforeEach(func() {
			doc = newDoc("doc-1", now)
		})

		JustBeforeEach(func() {
			err = db.SaveDocument(doc)
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should round-trip the document", func() {
			saved, getErr := db.GetDocument("doc-1")
			Expect(getErr).NotTo(HaveOccurred())
			Expect(saved.ID).To(Equal("doc-1"))
			Expect(saved.Fields).To(Equal(doc.Fields))
			Expect(saved.Original).NotTo(BeNil())
			Expect(*saved.Original).To(Equal(*doc.Original))
			Expect(saved.Status).To(Equal(StatusNeedsReview))
			Expect(saved.ChangesCount).To(BeNil())
			Expect(saved.UploadedAt.Equal(now)).To(BeTrue())
		})
	})

	Describe("GetDocument", func() {
		When("the document does not exist", func() {
			It("returns ErrNotFound", func() {
				_, err := db.GetDocument("nonexistent")
				Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
			})
		})
	})

	Describe("ListDocuments", func() {
		When("documents exist", func() {
			BeforeEach(func() {
				Expect(db.SaveDocument(newDoc("b", now.Add(time.Minute)))).To(Succeed())
				Expect(db.SaveDocument(newDoc("c", now.Add(-time.Minute)))).To(Succeed())
				Expect(db.SaveDocument(newDoc("a", now))).To(Succeed())
			})

			It("should return them oldest upload first", func() {
				docs, err := db.ListDocuments()
				Expect(err).NotTo(HaveOccurred())
				Expect(docs).To(HaveLen(3))
				Expect(docs[0].ID).To(Equal("c"))
				Expect(docs[1].ID).To(Equal("a"))
				Expect(docs[2].ID).To(Equal("b"))
			})
		})

		When("no documents exist", func() {
			It("should return an empty list", func() {
				docs, err := db.ListDocuments()
				Expect(err).NotTo(HaveOccurred())
				Expect(docs).To(BeEmpty())
			})
		})
	})

	Describe("UpdateDocument", func() {
		BeforeEach(func() {
			Expect(db.SaveDocument(newDoc("doc-1", now))).To(Succeed())
		})

		When("the update succeeds", func() {
			It("should persist the change", func() {
				updated, err := db.UpdateDocument("doc-1", func(doc *Document) error {
					return doc.Accept(now)
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(updated.Status).To(Equal(StatusProcessed))

				saved, err := db.GetDocument("doc-1")
				Expect(err).NotTo(HaveOccurred())
				Expect(saved.Status).To(Equal(StatusProcessed))
				Expect(*saved.ChangesCount).To(Equal(0))
			})
		})

		When("the update function fails", func() {
			It("should write nothing", func() {
				setupErr := errors.New("nope")
				_, err := db.UpdateDocument("doc-1", func(doc *Document) error {
					doc.Fields.Vendor = "changed"
					return setupErr
				})
				Expect(err).To(MatchError(setupErr))

				saved, err := db.GetDocument("doc-1")
				Expect(err).NotTo(HaveOccurred())
				Expect(saved.Fields.Vendor).To(BeEmpty())
			})
		})

		When("the document does not exist", func() {
			It("returns ErrNotFound", func() {
				_, err := db.UpdateDocument("missing", func(*Document) error { return nil })
				Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
			})
		})
	})

	Describe("DeleteDocument", func() {
		BeforeEach(func() {
			Expect(db.SaveDocument(newDoc("doc-1", now))).To(Succeed())
		})

		It("should remove the document", func() {
			Expect(db.DeleteDocument("doc-1")).To(Succeed())
			_, err := db.GetDocument("doc-1")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})

		It("returns ErrNotFound for unknown IDs", func() {
			Expect(errors.Is(db.DeleteDocument("missing"), ErrNotFound)).To(BeTrue())
		})
	})

	Describe("failures", func() {
		It("should list saved failures oldest first", func() {
			Expect(db.SaveFailure(&Failure{UploadID: "2", Kind: FailureExtraction, At: now.Add(time.Second)})).To(Succeed())
			Expect(db.SaveFailure(&Failure{UploadID: "1", Kind: FailureUnsupportedFileType, At: now})).To(Succeed())

			failures, err := db.ListFailures()
			Expect(err).NotTo(HaveOccurred())
			Expect(failures).To(HaveLen(2))
			Expect(failures[0].UploadID).To(Equal("1"))
			Expect(failures[1].Kind).To(Equal(FailureExtraction))
		})
	})

	Describe("reopening", func() {
		It("should keep documents across restarts", func() {
			Expect(db.SaveDocument(newDoc("doc-1", now))).To(Succeed())
			Expect(db.Close()).To(Succeed())

			var err error
			db, err = NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())

			docs, err := db.ListDocuments()
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
		})
	})
})
