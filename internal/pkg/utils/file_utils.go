package utils

import (
	"os"

	jsoniter "github.com/json-iterator/go"
)

// LoadJSONFile читает JSON-файл и декодирует его в значение типа T.
func LoadJSONFile[T any](filePath string) (T, error) {
	var out T
	data, err := os.ReadFile(filePath)
	if err != nil {
		return out, err
	}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &out); err != nil {
		return out, err
	}
	return out, nil
}
