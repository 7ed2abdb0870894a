package relations

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"newsdesk/models"
	"newsdesk/pocketbase"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// MembershipLimit bounds the batched existence query. Page sizes are clamped
// to it at config load so a page never outgrows its membership lookup.
const MembershipLimit = 100

// Membership resolves which of the given stories belong to the session
// user's collection, using a single batched query instead of one existence
// check per story. The result is sparse: present ids map to true, absent ids
// are not members. An anonymous session or empty id set short-circuits to an
// empty map without querying.
func (a *Adapter) Membership(ctx context.Context, sess *pocketbase.Session, storyIDs []int64) models.Membership {
	if !sess.Authenticated() || len(storyIDs) == 0 {
		return models.Membership{}
	}

	clauses := lo.Map(storyIDs, func(id int64, _ int) string {
		return fmt.Sprintf(`storyId="%d"`, id)
	})
	filter := fmt.Sprintf(`user="%s" && (%s)`, sess.User.ID, strings.Join(clauses, " || "))

	result, err := sess.Client.List(ctx, string(a.collection), pocketbase.ListOptions{
		Page:    1,
		PerPage: MembershipLimit,
		Filter:  filter,
		Fields:  "id,storyId",
	})
	if err != nil {
		log.WithFields(log.Fields{
			"collection": a.collection,
			"user":       sess.User.ID,
			"count":      len(storyIDs),
			"error":      err,
		}).Error("Error fetching membership")
		return models.Membership{}
	}

	membership := models.Membership{}
	for _, record := range pocketbase.DecodeItems[models.Relation](result.Items) {
		id, err := strconv.ParseInt(record.StoryID, 10, 64)
		if err != nil {
			continue
		}
		membership[id] = true
	}
	return membership
}
