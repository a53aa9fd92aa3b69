package sqlite

import (
	"fmt"
	"time"

	"github.com/xraph/grove"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/mantle/internal/docjson"
	"github.com/xraph/mantle/store"
)

// documentModel is one row of the shared document table. The type column
// mirrors the discriminator so it can carry a partial index.
type documentModel struct {
	grove.BaseModel `grove:"table:mantle_documents"`
	ID              string    `grove:"id,pk"`
	Type            *string   `grove:"type"`
	Body            string    `grove:"body,notnull"` // extended JSON
	CreatedAt       time.Time `grove:"created_at,notnull"`
}

func documentToModel(doc bson.M, discriminator string, createdAt time.Time) (*documentModel, error) {
	key, ok := doc[store.IDField].(string)
	if !ok || key == "" {
		return nil, fmt.Errorf("document has no string %s", store.IDField)
	}
	body, err := docjson.Encode(doc)
	if err != nil {
		return nil, err
	}
	return &documentModel{
		ID:        key,
		Type:      docjson.TypeOf(doc, discriminator),
		Body:      body,
		CreatedAt: createdAt,
	}, nil
}

func documentFromModel(m *documentModel) (bson.M, error) {
	doc, err := docjson.Decode(m.Body)
	if err != nil {
		return nil, fmt.Errorf("row %s: %w", m.ID, err)
	}
	doc[store.IDField] = m.ID
	return doc, nil
}
