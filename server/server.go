// Package server is the web front end: server-rendered pages for the
// mirrored feed and the user's favorites and deferred lists, plus the toggle
// endpoints the list buttons post to.
package server

import (
	"embed"
	"html/template"
	"strconv"
	"strings"
	"time"

	"newsdesk/feed"
	"newsdesk/models"
	"newsdesk/pocketbase"
	"newsdesk/relations"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cache"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var templatesFS embed.FS

// pageCacheTTL bounds how stale a cached page rendering may get for users
// whose epoch never changes.
const pageCacheTTL = 30 * time.Second

// Config for the web server.
type Config struct {
	// Hostname is the public hostname, used for canonical page links.
	Hostname string

	// PB is the anonymous record store handle; per-user handles are derived
	// from it by the session middleware.
	PB *pocketbase.Client

	// Reader serves the mirrored feed pages.
	Reader *feed.Reader

	// PageSize is the number of stories per rendered page.
	PageSize int
}

type server struct {
	pb        *pocketbase.Client
	reader    *feed.Reader
	favorites *relations.Adapter
	deferred  *relations.Adapter
	pageCache *PageCache
	templates *template.Template
	pageSize  int
	hostname  string
}

// New returns a fiber.App serving the newsdesk pages.
func New(config *Config) *fiber.App {
	templates := template.Must(template.New("").Funcs(template.FuncMap{
		"timeAgo": timeAgo,
		"host":    models.Hostname,
	}).ParseFS(templatesFS, "templates/*.html"))

	pageCache := NewPageCache()

	s := &server{
		pb:        config.PB,
		reader:    config.Reader,
		favorites: relations.NewAdapter(relations.Favorites, pageCache),
		deferred:  relations.NewAdapter(relations.Deferred, pageCache),
		pageCache: pageCache,
		templates: templates,
		pageSize:  config.PageSize,
		hostname:  config.Hostname,
	}

	app := fiber.New()

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"status":  c.Response().StatusCode(),
			"latency": time.Since(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())
	app.Use(s.sessionMiddleware)

	// Page cache: short-lived, keyed per user and cache epoch so relation
	// mutations invalidate every cached rendering for that user at once.
	app.Use(cache.New(cache.Config{
		Expiration: pageCacheTTL,
		Next: func(c *fiber.Ctx) bool {
			if c.Method() != fiber.MethodGet {
				return true
			}
			path := c.Path()
			return !(path == "/" || strings.HasPrefix(path, "/favorites") || strings.HasPrefix(path, "/deferred"))
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			userID := sessionUserID(c)
			return c.Request().URI().String() + "|" + userID + "|" + s.pageCache.Epoch(userID)
		},
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/", s.handleFeedPage)
	app.Get("/favorites", s.handleCollectionPage(relations.Favorites))
	app.Get("/deferred", s.handleCollectionPage(relations.Deferred))

	app.Post("/stories/:id/favorite", s.handleToggle(relations.Favorites))
	app.Post("/stories/:id/defer", s.handleToggle(relations.Deferred))

	app.Get("/login", s.handleLoginPage)
	app.Post("/login", s.handleLogin)
	app.Post("/logout", s.handleLogout)

	return app
}

func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d.Minutes()), "minute")
	case d < 24*time.Hour:
		return plural(int(d.Hours()), "hour")
	default:
		return plural(int(d.Hours()/24), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return strconv.Itoa(n) + " " + unit + "s ago"
}
