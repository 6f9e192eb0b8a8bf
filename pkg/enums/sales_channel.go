package enums

import "fmt"

// SalesChannel identifies where a transaction was recorded.
type SalesChannel int

const (
	SalesChannelStore  SalesChannel = 1
	SalesChannelOnline SalesChannel = 2
)

func (c SalesChannel) String() string {
	switch c {
	case SalesChannelStore:
		return "store"
	case SalesChannelOnline:
		return "online"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

// IsValid reports whether the channel id is known.
func (c SalesChannel) IsValid() bool {
	return c == SalesChannelStore || c == SalesChannelOnline
}

// ParseSalesChannel converts a raw channel id into a SalesChannel.
func ParseSalesChannel(value int) (SalesChannel, error) {
	c := SalesChannel(value)
	if !c.IsValid() {
		return 0, fmt.Errorf("invalid sales channel %d", value)
	}
	return c, nil
}
