package server

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/jmorganca/subword/api"
	"github.com/jmorganca/subword/envconfig"
	"github.com/jmorganca/subword/tokenizer"
	"github.com/jmorganca/subword/version"
)

// Server exposes one loaded tokenizer over HTTP.
type Server struct {
	tok tokenizer.Tokenizer

	loadDuration time.Duration
	maxInput     int64
}

func NewServer(tok tokenizer.Tokenizer, loadDuration time.Duration) *Server {
	return &Server{
		tok:          tok,
		loadDuration: loadDuration,
		maxInput:     int64(envconfig.MaxInputBytes()),
	}
}

func (s *Server) GenerateRoutes() http.Handler {
	config := cors.DefaultConfig()
	config.AllowWildcard = true
	config.AllowBrowserExtensions = true
	config.AllowHeaders = []string{"Authorization", "Content-Type", "User-Agent", "Accept", "X-Requested-With"}
	config.AllowOrigins = envconfig.AllowedOrigins()

	r := gin.Default()
	r.Use(
		cors.New(config),
		s.limitBody,
	)

	r.HEAD("/", func(c *gin.Context) { c.String(http.StatusOK, "subword is running") })
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "subword is running") })
	r.HEAD("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, api.VersionResponse{Version: version.Version}) })
	r.GET("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, api.VersionResponse{Version: version.Version}) })

	r.GET("/api/show", s.ShowHandler)
	r.POST("/api/tokenize", s.TokenizeHandler)
	r.POST("/api/detokenize", s.DetokenizeHandler)

	return r
}

// limitBody caps request bodies at maxInput bytes. Zero disables the limit.
func (s *Server) limitBody(c *gin.Context) {
	if s.maxInput > 0 && c.Request.Body != nil {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxInput)
	}
	c.Next()
}

// bindJSON decodes the request body into req and writes the error response
// when it cannot.
func bindJSON(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	var maxBytesError *http.MaxBytesError
	switch {
	case err == nil:
		return true
	case errors.As(err, &maxBytesError):
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("request body exceeds %d bytes", maxBytesError.Limit)})
	case errors.Is(err, io.EOF):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing request body"})
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
	return false
}

func (s *Server) TokenizeHandler(c *gin.Context) {
	var req api.TokenizeRequest
	if !bindJSON(c, &req) {
		return
	}

	tokens := s.tok.Tokenize(req.Text)
	ids := make([]int32, len(tokens))
	for i, token := range tokens {
		ids[i] = s.tok.TokenToID(token)
	}

	if tokens == nil {
		tokens = []string{}
	}

	c.JSON(http.StatusOK, api.TokenizeResponse{Tokens: tokens, IDs: ids})
}

func (s *Server) DetokenizeHandler(c *gin.Context) {
	var req api.DetokenizeRequest
	if !bindJSON(c, &req) {
		return
	}

	text, err := s.tok.Decode(req.IDs)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, api.DetokenizeResponse{Text: text})
}

func (s *Server) ShowHandler(c *gin.Context) {
	c.JSON(http.StatusOK, Describe(s.tok, s.loadDuration))
}

// Describe summarizes tok for the show endpoint and the inspect command.
func Describe(tok tokenizer.Tokenizer, loadDuration time.Duration) api.ShowResponse {
	vocab := tok.Vocabulary()
	resp := api.ShowResponse{
		Type:         tok.Type(),
		VocabSize:    vocab.Size(),
		LoadDuration: loadDuration,
	}

	if bpe, ok := tok.(*tokenizer.BytePairEncoding); ok {
		resp.Merges = bpe.Ranks().Len()
	}

	added := vocab.AddedTokens()
	slices.SortFunc(added, func(a, b tokenizer.AddedToken) int { return cmp.Compare(a.ID, b.ID) })
	for _, t := range added {
		resp.AddedTokens = append(resp.AddedTokens, api.AddedToken{ID: t.ID, Content: t.Content, Special: t.Special})
	}

	for _, kind := range []tokenizer.Special{tokenizer.SpecialBOS, tokenizer.SpecialEOS, tokenizer.SpecialUNK} {
		if content, id, ok := vocab.Special(kind); ok {
			if resp.SpecialTokens == nil {
				resp.SpecialTokens = make(map[string]api.SpecialToken)
			}
			resp.SpecialTokens[kind.String()] = api.SpecialToken{Content: content, ID: id}
		}
	}

	return resp
}

// Serve serves s on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if envconfig.LogLevel() > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Handler:           s.GenerateRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
			done <- nil
			return
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- srv.Shutdown(shutdownCtx)
	}()

	slog.Info(fmt.Sprintf("Listening on %s (version %s)", ln.Addr(), version.Version), "type", s.tok.Type(), "vocab", s.tok.Vocabulary().Size())
	err := srv.Serve(ln)
	close(stop)
	if !errors.Is(err, http.ErrServerClosed) {
		<-done
		return err
	}

	return <-done
}
