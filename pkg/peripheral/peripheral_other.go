//go:build !linux

package peripheral

import "github.com/fako1024/gatt"

var defaultBTServerOptions []gatt.Option
