package monday

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/opsync/internal/phone"
)

// Column describes one board column.
type Column struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// Contact is a live board item with its phone column values as displayed.
type Contact struct {
	ID     string
	Name   string
	Phone1 string
	Phone2 string
}

const dateFormat = "2006-01-02"

const columnsQuery = `
query ($boardId: [ID!]) {
  boards(ids: $boardId) {
    id
    name
    columns {
      id
      title
      type
    }
  }
}`

// Columns returns the column layout of a board.
func (c *httpClient) Columns(ctx context.Context, boardID string) ([]Column, error) {
	data, err := c.Do(ctx, columnsQuery, map[string]any{"boardId": []string{boardID}})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Boards []struct {
			Columns []Column `json:"columns"`
		} `json:"boards"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, eris.Wrap(err, "monday: decode columns")
	}
	if len(resp.Boards) == 0 {
		return nil, eris.Errorf("monday: board %s not found", boardID)
	}
	return resp.Boards[0].Columns, nil
}

const contactsQuery = `
query ($boardId: [ID!]) {
  boards(ids: $boardId) {
    items_page (limit: 500) {
      cursor
      items {
        id
        name
        column_values {
          id
          text
        }
      }
    }
  }
}`

const contactsPageQuery = `
query ($cursor: String!) {
  next_items_page (limit: 500, cursor: $cursor) {
    cursor
    items {
      id
      name
      column_values {
        id
        text
      }
    }
  }
}`

type itemsPage struct {
	Cursor string `json:"cursor"`
	Items  []struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		ColumnValues []struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		} `json:"column_values"`
	} `json:"items"`
}

// Contacts fetches every item on the board, following the items cursor
// across pages.
func (c *httpClient) Contacts(ctx context.Context, boardID string) ([]Contact, error) {
	data, err := c.Do(ctx, contactsQuery, map[string]any{"boardId": []string{boardID}})
	if err != nil {
		return nil, err
	}

	var first struct {
		Boards []struct {
			ItemsPage itemsPage `json:"items_page"`
		} `json:"boards"`
	}
	if err := json.Unmarshal(data, &first); err != nil {
		return nil, eris.Wrap(err, "monday: decode contacts")
	}
	if len(first.Boards) == 0 {
		return nil, eris.Errorf("monday: board %s not found", boardID)
	}

	page := first.Boards[0].ItemsPage
	contacts := c.pageContacts(page)

	for page.Cursor != "" {
		data, err := c.Do(ctx, contactsPageQuery, map[string]any{"cursor": page.Cursor})
		if err != nil {
			return nil, err
		}
		var next struct {
			NextItemsPage itemsPage `json:"next_items_page"`
		}
		if err := json.Unmarshal(data, &next); err != nil {
			return nil, eris.Wrap(err, "monday: decode contacts page")
		}
		page = next.NextItemsPage
		contacts = append(contacts, c.pageContacts(page)...)
	}

	return contacts, nil
}

func (c *httpClient) pageContacts(page itemsPage) []Contact {
	contacts := make([]Contact, 0, len(page.Items))
	for _, item := range page.Items {
		contact := Contact{ID: item.ID, Name: item.Name}
		for _, col := range item.ColumnValues {
			switch col.ID {
			case c.columns.Phone1:
				contact.Phone1 = col.Text
			case c.columns.Phone2:
				contact.Phone2 = col.Text
			}
		}
		contacts = append(contacts, contact)
	}
	return contacts
}

const changeColumnsMutation = `
mutation ($itemId: ID!, $boardId: ID!, $columnVals: JSON!) {
  change_multiple_column_values(item_id: $itemId, board_id: $boardId, column_values: $columnVals) {
    id
  }
}`

// UpdateLastActivity sets only the last-activity date column on an item.
func (c *httpClient) UpdateLastActivity(ctx context.Context, boardID, itemID string, lastActivity time.Time) error {
	return c.changeColumns(ctx, boardID, itemID, map[string]any{
		c.columns.LastActivity: dateValue(lastActivity),
	})
}

// UpdateActivity sets both the date-created and last-activity columns.
func (c *httpClient) UpdateActivity(ctx context.Context, boardID, itemID string, created, lastActivity time.Time) error {
	return c.changeColumns(ctx, boardID, itemID, map[string]any{
		c.columns.DateCreated:  dateValue(created),
		c.columns.LastActivity: dateValue(lastActivity),
	})
}

func (c *httpClient) changeColumns(ctx context.Context, boardID, itemID string, columnValues map[string]any) error {
	vals, err := json.Marshal(columnValues)
	if err != nil {
		return eris.Wrap(err, "monday: marshal column values")
	}
	_, err = c.Do(ctx, changeColumnsMutation, map[string]any{
		"itemId":     itemID,
		"boardId":    boardID,
		"columnVals": string(vals),
	})
	if err != nil {
		return eris.Wrapf(err, "monday: update item %s", itemID)
	}
	return nil
}

const createItemMutation = `
mutation ($boardId: ID!, $itemName: String!, $columnVals: JSON!) {
  create_item(board_id: $boardId, item_name: $itemName, column_values: $columnVals) {
    id
    name
  }
}`

// CreateContact adds a new board item with phone and activity columns.
// Empty phones are omitted; an empty name falls back to "Contact <phone1>".
func (c *httpClient) CreateContact(ctx context.Context, boardID, name, phone1, phone2 string, created, lastActivity time.Time) (string, error) {
	if name == "" {
		name = "Contact " + phone1
	}

	columnValues := map[string]any{
		c.columns.DateCreated:  dateValue(created),
		c.columns.LastActivity: dateValue(lastActivity),
	}
	if v := phoneValue(phone1); v != nil {
		columnValues[c.columns.Phone1] = v
	}
	if v := phoneValue(phone2); v != nil {
		columnValues[c.columns.Phone2] = v
	}

	vals, err := json.Marshal(columnValues)
	if err != nil {
		return "", eris.Wrap(err, "monday: marshal column values")
	}

	data, err := c.Do(ctx, createItemMutation, map[string]any{
		"boardId":    boardID,
		"itemName":   name,
		"columnVals": string(vals),
	})
	if err != nil {
		return "", eris.Wrapf(err, "monday: create contact %q", name)
	}

	var resp struct {
		CreateItem struct {
			ID string `json:"id"`
		} `json:"create_item"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", eris.Wrap(err, "monday: decode create response")
	}
	return resp.CreateItem.ID, nil
}

func dateValue(t time.Time) map[string]string {
	return map[string]string{"date": t.Format(dateFormat)}
}

func phoneValue(raw string) map[string]string {
	formatted := phone.FormatE164(raw)
	if formatted == "" {
		return nil
	}
	return map[string]string{"phone": formatted, "countryShortName": "US"}
}
