package lemonfs

// Option configures a Filesystem at Mount time via the standard
// functional-options pattern: each Option mutates a private config struct
// and can fail validation before Mount ever touches the device.
type Option func(*mountConfig) error

type mountConfig struct {
	maxInodes uint32
}

// MaxInodes overrides the default inode-table capacity. Mostly useful in
// tests that want a small device to exercise table-exhaustion paths
// without allocating thousands of inodes.
func MaxInodes(n uint32) Option {
	return func(c *mountConfig) error {
		c.maxInodes = n
		return nil
	}
}
