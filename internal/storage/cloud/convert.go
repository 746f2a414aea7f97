package cloud

import (
	"encoding/json"
	"math"
	"strconv"
)

// toDocument converts a tagged struct to a Document through its JSON form.
func toDocument(v interface{}) (Document, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// fromDocument decodes a Document into a tagged struct through its JSON form.
func fromDocument(doc Document, dst interface{}) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, dst)
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(math.Round(n))
	case json.Number:
		i, _ := n.Int64()
		return i
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	default:
		return 0
	}
}

func stringField(doc Document, key string) string {
	if s, ok := doc[key].(string); ok {
		return s
	}
	return ""
}

func boolField(doc Document, key string) bool {
	b, _ := doc[key].(bool)
	return b
}
