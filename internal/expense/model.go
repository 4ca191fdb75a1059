package expense

import (
	"encoding/json"
	"strings"
	"time"
)

type Expense struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	CategoryID  *string   `db:"category_id"`
	AmountCents int64     `db:"amount_cents"`
	SpentOn     time.Time `db:"spent_on"`
	CreatedAt   time.Time `db:"created_at"`
}

// AmountField accepts an amount as either a JSON number or a decimal string,
// preserving the exact digits the client sent.
type AmountField string

func (a *AmountField) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*a = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var unquoted string
		if err := json.Unmarshal(data, &unquoted); err != nil {
			return err
		}
		*a = AmountField(unquoted)
		return nil
	}
	*a = AmountField(s)
	return nil
}

type writeRequest struct {
	Category *string     `json:"category"`
	Amount   AmountField `json:"amount"`
	Date     *string     `json:"date"`
}
