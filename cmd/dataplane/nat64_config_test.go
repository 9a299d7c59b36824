package main

import (
	"github.com/sakateka/yanet2-sub001/internal/nat64"
)

func newTestNAT64Config() (*nat64.Config, error) {
	return nat64.NewConfig(1500, 1500)
}
