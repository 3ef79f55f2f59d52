package frontend

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/franchb/ldapsafe/pkg/escape"
	"github.com/franchb/ldapsafe/pkg/stats"
)

//go:embed templates/*.html
var templateFS embed.FS

// Searcher runs an already sanitized search
type Searcher interface {
	Search(ctx context.Context, baseDN, filter string) ([]string, error)
}

// searchRequest is the form posted to /submit
type searchRequest struct {
	DistinguishedName string `form:"distinguishedName"`
	Filter            string `form:"filter"`
}

type api struct {
	log      zerolog.Logger
	searcher Searcher
}

// NewRouter builds the web form. /metrics is only exposed when Internals is set.
func NewRouter(opts ...Option) (*gin.Engine, error) {
	options := newOptions(opts...)

	if options.Config == nil {
		return nil, errors.New("no web API configuration provided")
	}

	if options.Searcher == nil {
		return nil, errors.New("no directory backend provided")
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	a := &api{log: options.Logger, searcher: options.Searcher}

	router := gin.New()
	router.Use(gin.Recovery(), a.accessLog())
	router.SetHTMLTemplate(tmpl)

	router.GET("/", a.form)
	router.POST("/submit", a.submit)

	if options.Config.Internals {
		promHandler := promhttp.HandlerFor(
			prometheus.DefaultGatherer,
			promhttp.HandlerOpts{DisableCompression: true},
		)

		router.GET("/metrics", gin.WrapH(promHandler))
	}

	return router, nil
}

func (a *api) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		a.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Str("src", c.ClientIP()).
			Msg("HTTP request")
	}
}

func (a *api) form(c *gin.Context) {
	c.HTML(http.StatusOK, "form.html", gin.H{})
}

func (a *api) submit(c *gin.Context) {
	var req searchRequest

	if err := c.ShouldBind(&req); err != nil {
		c.HTML(http.StatusOK, "result.html", gin.H{"Error": err.Error()})
		return
	}

	a.log.Info().Str("distinguishedname", req.DistinguishedName).Str("filter", req.Filter).Msg("search requested")

	baseDN := escape.DN(req.DistinguishedName)
	stats.ObserveSanitized("dn", req.DistinguishedName, baseDN)

	filter := escape.FilterValues(req.Filter)
	stats.ObserveSanitized("filter", req.Filter, filter)

	a.log.Info().Str("distinguishedname", baseDN).Str("filter", filter).Msg("sanitized search")

	results, err := a.searcher.Search(c.Request.Context(), baseDN, filter)
	if err != nil {
		stats.SearchRequests.WithLabelValues("failure").Inc()
		c.HTML(http.StatusOK, "result.html", gin.H{"Error": err.Error()})
		return
	}

	stats.SearchRequests.WithLabelValues("success").Inc()
	c.HTML(http.StatusOK, "result.html", gin.H{"Results": results})
}

// RunAPI serves the web form until ctx is done or the listener fails
func RunAPI(ctx context.Context, opts ...Option) error {
	options := newOptions(opts...)
	log := options.Logger
	cfg := options.Config

	router, err := NewRouter(opts...)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP server shutdown")
		}
	})

	defer stop()

	if cfg.TLS {
		log.Info().Str("address", cfg.Listen).Msg("Starting HTTPS server")
		err = srv.ListenAndServeTLS(cfg.Cert, cfg.Key)
	} else {
		log.Info().Str("address", cfg.Listen).Msg("Starting HTTP server")
		err = srv.ListenAndServe()
	}

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	log.Error().Err(err).Msg("error starting HTTP server")

	return err
}
