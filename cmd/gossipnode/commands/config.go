package commands

import (
	"github.com/AbolfazlSheikhha/gossip-network/src/config"
)

var _config = config.NewDefaultConfig()
