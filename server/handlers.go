package server

import (
	"bytes"
	"context"
	"strconv"
	"time"

	"newsdesk/models"
	"newsdesk/pocketbase"
	"newsdesk/relations"
	"newsdesk/toggle"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

// storyView pairs a story with its membership state for rendering.
type storyView struct {
	models.Story
	Favorited bool
	Deferred  bool
}

type pageView struct {
	Title    string
	User     *models.User
	Stories  []storyView
	Page     int
	Total    int
	PrevPage int
	NextPage int
	HasPrev  bool
	HasNext  bool
	Path     string
	Hostname string
	LoginErr bool
}

func (s *server) render(c *fiber.Ctx, name string, view pageView) error {
	view.Hostname = s.hostname
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, view); err != nil {
		log.WithFields(log.Fields{
			"template": name,
			"error":    err,
		}).Error("Error rendering template")
		return c.Status(fiber.StatusInternalServerError).SendString("Internal server error")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(buf.Bytes())
}

// parsePage clamps the page query parameter to 1 on anything invalid.
func parsePage(raw string) int {
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func (s *server) handleFeedPage(c *fiber.Ctx) error {
	sess := session(c)
	page := parsePage(c.Query("page", "1"))

	result := s.reader.FetchPage(c.UserContext(), page, s.pageSize)

	ids := models.StoryIDs(result.Stories)
	favorited := s.favorites.Membership(c.UserContext(), sess, ids)
	deferred := s.deferred.Membership(c.UserContext(), sess, ids)

	stories := make([]storyView, 0, len(result.Stories))
	for _, story := range result.Stories {
		stories = append(stories, storyView{
			Story:     story,
			Favorited: favorited[story.ID],
			Deferred:  deferred[story.ID],
		})
	}

	return s.render(c, "feed.html", s.pagedView("Latest stories", "/", sess, stories, page, result.Total))
}

func (s *server) handleCollectionPage(collection relations.Collection) fiber.Handler {
	adapter := s.adapterFor(collection)
	titles := map[relations.Collection]string{
		relations.Favorites: "Favorites",
		relations.Deferred:  "Read later",
	}
	return func(c *fiber.Ctx) error {
		sess := session(c)
		if !sess.Authenticated() {
			return c.Redirect("/login", fiber.StatusSeeOther)
		}

		page := parsePage(c.Query("page", "1"))
		items, total := adapter.ListPage(c.UserContext(), sess, page, s.pageSize)

		// Resolve the other collection's membership so both toggles render
		// with the right state.
		other := s.adapterFor(otherCollection(collection))
		otherMembership := other.Membership(c.UserContext(), sess, models.StoryIDs(items))

		stories := make([]storyView, 0, len(items))
		for _, story := range items {
			view := storyView{Story: story}
			member := otherMembership[story.ID]
			if collection == relations.Favorites {
				view.Favorited = true
				view.Deferred = member
			} else {
				view.Deferred = true
				view.Favorited = member
			}
			stories = append(stories, view)
		}

		path := "/" + string(collection)
		return s.render(c, "collection.html", s.pagedView(titles[collection], path, sess, stories, page, total))
	}
}

func (s *server) pagedView(title string, path string, sess *pocketbase.Session, stories []storyView, page int, total int) pageView {
	totalPages := (total + s.pageSize - 1) / s.pageSize
	view := pageView{
		Title:    title,
		Stories:  stories,
		Page:     page,
		Total:    total,
		PrevPage: page - 1,
		NextPage: page + 1,
		HasPrev:  page > 1,
		HasNext:  page < totalPages,
		Path:     path,
	}
	if sess.Authenticated() {
		view.User = sess.User
	}
	return view
}

func (s *server) adapterFor(collection relations.Collection) *relations.Adapter {
	if collection == relations.Deferred {
		return s.deferred
	}
	return s.favorites
}

func otherCollection(collection relations.Collection) relations.Collection {
	if collection == relations.Favorites {
		return relations.Deferred
	}
	return relations.Favorites
}

// handleToggle is the endpoint behind the favorite and read-later buttons.
// It seeds a toggle controller with the client-known membership state,
// returns the optimistic state immediately and lets the confirming store
// call finish in the background.
func (s *server) handleToggle(collection relations.Collection) fiber.Handler {
	adapter := s.adapterFor(collection)
	return func(c *fiber.Ctx) error {
		sess := session(c)
		if !sess.Authenticated() {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Please sign in to save stories",
			})
		}

		story, err := storyFromForm(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid story",
			})
		}

		member := c.FormValue("member") == "1"
		controller := toggle.New(adapter, story, member)

		// The store call must outlive the request; navigating away discards
		// the result, not the write.
		state, done, err := controller.Toggle(context.WithoutCancel(c.UserContext()), sess)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Please sign in to save stories",
			})
		}

		go func() {
			if outcome := <-done; outcome.Err != nil {
				log.WithFields(log.Fields{
					"collection": collection,
					"storyId":    story.ID,
					"error":      outcome.Err,
				}).Warn("Toggle failed, state reverted")
			}
		}()

		return c.JSON(fiber.Map{"state": state})
	}
}

func storyFromForm(c *fiber.Ctx) (models.Story, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return models.Story{}, fiber.ErrBadRequest
	}

	score, _ := strconv.Atoi(c.FormValue("score"))
	comments, _ := strconv.Atoi(c.FormValue("comments"))
	postedUnix, _ := strconv.ParseInt(c.FormValue("postedAt"), 10, 64)

	return models.Story{
		ID:           id,
		Title:        c.FormValue("title"),
		URL:          c.FormValue("url"),
		Author:       c.FormValue("author"),
		Score:        score,
		CommentCount: comments,
		PostedAt:     time.Unix(postedUnix, 0).UTC(),
	}, nil
}

func (s *server) handleLoginPage(c *fiber.Ctx) error {
	sess := session(c)
	if sess.Authenticated() {
		return c.Redirect("/", fiber.StatusSeeOther)
	}
	view := pageView{Title: "Sign in", Path: "/login", LoginErr: c.Query("error") != ""}
	return s.render(c, "login.html", view)
}

func (s *server) handleLogin(c *fiber.Ctx) error {
	identity := c.FormValue("identity")
	password := c.FormValue("password")

	auth, err := s.pb.AuthWithPassword(c.UserContext(), pocketbase.UsersCollection, identity, password)
	if err != nil {
		log.WithFields(log.Fields{
			"identity": identity,
			"error":    err,
		}).Info("Login failed")
		return c.Redirect("/login?error=1", fiber.StatusSeeOther)
	}

	setSessionCookie(c, auth.Token)
	return c.Redirect("/", fiber.StatusSeeOther)
}

func (s *server) handleLogout(c *fiber.Ctx) error {
	clearSessionCookie(c)
	return c.Redirect("/", fiber.StatusSeeOther)
}
