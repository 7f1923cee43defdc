package scanning

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Ollama", func() {
	var (
		server  *ghttp.Server
		scanner *Ollama
		result  *Result
		err     error
		request ollamaChatRequest
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		scanner, err = NewOllama(server.URL()+"/", "qwen2-vl")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		result, err = scanner.Scan(context.Background(), []byte("png bytes"), TypePNG)
	})

	When("the model answers with a transcription", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				func(w http.ResponseWriter, r *http.Request) {
					body, _ := io.ReadAll(r.Body)
					Expect(json.Unmarshal(body, &request)).To(Succeed())
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"message": map[string]string{
						"role":    "assistant",
						"content": `{"text": "Invoice # 7\nTotal: $3.00", "confidence": 72}`,
					},
					"done": true,
				}),
			))
		})

		It("should return the transcription", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Text).To(Equal("Invoice # 7\nTotal: $3.00"))
			Expect(result.Confidence).To(Equal(72.0))
			Expect(result.Method).To(Equal("ollama"))
		})

		It("should send the image with the prompt", func() {
			Expect(request.Model).To(Equal("qwen2-vl"))
			Expect(request.Messages).To(HaveLen(2))
			Expect(request.Messages[1].Images).To(ConsistOf(base64.StdEncoding.EncodeToString([]byte("png bytes"))))
		})
	})

	When("the API returns an error status", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("should return the error", func() {
			Expect(err).To(MatchError(ContainSubstring("status 500")))
		})
	})

	When("the model answers without JSON", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"message": map[string]string{"role": "assistant", "content": "I can't read that"},
				"done":    true,
			}))
		})

		It("should return a parse error", func() {
			Expect(err).To(MatchError(ContainSubstring("parsing ollama transcription")))
		})
	})
})
