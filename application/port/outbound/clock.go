package outbound

import "time"

type Clock interface {
	Now() time.Time
}
