// Package reconcile merges freshly computed activity windows into the CRM
// board, deciding per contact between updating last activity and creating
// a new entry.
package reconcile

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/opsync/internal/activity"
	"github.com/sells-group/opsync/internal/exports"
	"github.com/sells-group/opsync/internal/phone"
	"github.com/sells-group/opsync/pkg/monday"
)

// CRMWriter issues the mutations the reconciler decides on.
type CRMWriter interface {
	UpdateLastActivity(ctx context.Context, boardID, itemID string, lastActivity time.Time) error
	CreateContact(ctx context.Context, boardID, name, phone1, phone2 string, created, lastActivity time.Time) (string, error)
}

// Result counts the decisions taken in one reconciliation pass.
type Result struct {
	Updated int
	Created int
	Skipped int
	Failed  int
}

// Reconciler applies one pass over the board's contacts.
type Reconciler struct {
	BoardID string
	Writer  CRMWriter

	// Now supplies the fallback activity window for contacts with no
	// observed history. Defaults to time.Now.
	Now func() time.Time
}

// Run processes every CRM contact exactly once, sequentially. Matching is
// pinned to the phone1 key: a contact whose phone1 key appears in the
// formatted-contacts index gets its last-activity date refreshed from the
// activity index; any other contact is treated as new and recreated from
// its own fields. Instruction failures are logged and the pass continues.
func (r *Reconciler) Run(ctx context.Context, crmContacts []monday.Contact, formatted map[string]exports.Contact, index map[string]activity.Window) Result {
	now := r.Now
	if now == nil {
		now = time.Now
	}

	// Every board item owning each phone key, for suppressing duplicate
	// creates across runs and within this pass.
	owners := make(map[string][]string)
	for _, c := range crmContacts {
		for _, raw := range []string{c.Phone1, c.Phone2} {
			if key := phone.Normalize(raw); key != "" {
				owners[key] = append(owners[key], c.ID)
			}
		}
	}

	var result Result
	for _, contact := range crmContacts {
		log := zap.L().With(
			zap.String("contact_id", contact.ID),
			zap.String("name", contact.Name),
		)

		key := phone.Normalize(contact.Phone1)

		if _, known := formatted[key]; known && key != "" {
			window, ok := index[key]
			if !ok {
				log.Debug("no activity for known contact", zap.String("phone_key", key))
				result.Skipped++
				continue
			}
			if err := r.Writer.UpdateLastActivity(ctx, r.BoardID, contact.ID, window.LastSeen); err != nil {
				log.Error("update last activity failed", zap.Error(err))
				result.Failed++
				continue
			}
			log.Info("last activity updated",
				zap.String("phone_key", key),
				zap.Time("last_seen", window.LastSeen),
			)
			result.Updated++
			continue
		}

		// Not in the known dataset: recreate from the contact's own fields,
		// unless the key is already carried by another board item (or more
		// than one), which means an earlier run's create already landed.
		if key != "" && duplicateKey(owners[key], contact.ID) {
			log.Info("duplicate create suppressed",
				zap.String("phone_key", key),
				zap.Strings("owner_ids", owners[key]),
			)
			result.Skipped++
			continue
		}

		created, lastSeen := now(), now()
		if window, ok := index[key]; ok && key != "" {
			created, lastSeen = window.FirstSeen, window.LastSeen
		}

		phone2 := contact.Phone2
		if phone2 == "" {
			phone2 = contact.Phone1
		}

		newID, err := r.Writer.CreateContact(ctx, r.BoardID, contact.Name, contact.Phone1, phone2, created, lastSeen)
		if err != nil {
			log.Error("create contact failed", zap.Error(err))
			result.Failed++
			continue
		}
		if key != "" {
			owners[key] = append(owners[key], newID)
		}
		log.Info("contact created",
			zap.String("new_id", newID),
			zap.String("phone_key", key),
		)
		result.Created++
	}

	return result
}

// duplicateKey reports whether a phone key is carried by any board item
// other than the one being processed.
func duplicateKey(ids []string, selfID string) bool {
	for _, id := range ids {
		if id != selfID {
			return true
		}
	}
	return false
}
