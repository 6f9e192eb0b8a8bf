package enums

import "fmt"

// StorageStrategy controls how an image key becomes a fetchable URL.
type StorageStrategy string

const (
	StorageStrategyDirect    StorageStrategy = "direct"
	StorageStrategyPresigned StorageStrategy = "presigned"
)

var validStorageStrategies = []StorageStrategy{
	StorageStrategyDirect,
	StorageStrategyPresigned,
}

func (s StorageStrategy) String() string {
	return string(s)
}

func (s StorageStrategy) IsValid() bool {
	for _, candidate := range validStorageStrategies {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStorageStrategy converts raw input into a StorageStrategy.
func ParseStorageStrategy(value string) (StorageStrategy, error) {
	for _, candidate := range validStorageStrategies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid storage strategy %q", value)
}
