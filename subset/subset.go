// Package subset implements the partial-document query filter used by the
// listing operations. A query matches a document iff, for every path present
// in the query, the document's value at that path equals the query's value.
// Paths absent from the query are unconstrained.
package subset

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/fiware/consent-flow/logging"
	"github.com/tidwall/gjson"
)

var logger = logging.Log()

func Matches(document interface{}, query map[string]interface{}) bool {
	if len(query) == 0 {
		return true
	}
	documentJson, err := json.Marshal(document)
	if err != nil {
		logger.Warnf("Was not able to marshal the document for query matching. Err: %v", err)
		return false
	}
	return matchesAt(documentJson, "", query)
}

func matchesAt(documentJson []byte, prefix string, query map[string]interface{}) bool {
	for key, queryValue := range query {
		path := escapeKey(key)
		if prefix != "" {
			path = prefix + "." + path
		}
		if subQuery, ok := queryValue.(map[string]interface{}); ok {
			if !matchesAt(documentJson, path, subQuery) {
				return false
			}
			continue
		}
		result := gjson.GetBytes(documentJson, path)
		if !result.Exists() {
			return false
		}
		if !reflect.DeepEqual(result.Value(), queryValue) {
			return false
		}
	}
	return true
}

// category names are caller-defined and may contain gjson syntax characters
func escapeKey(key string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		".", "\\.",
		"*", "\\*",
		"?", "\\?",
		"#", "\\#",
		"@", "\\@",
		"|", "\\|",
	)
	return replacer.Replace(key)
}
