package root

import (
	"github.com/Ixotic27/certifyhub/apps/cli/cmd/auth"
	"github.com/Ixotic27/certifyhub/apps/cli/cmd/bootstrap"
	"github.com/Ixotic27/certifyhub/apps/cli/cmd/club"
	"github.com/Ixotic27/certifyhub/apps/cli/cmd/roster"
)

func init() {
	Root().AddCommand(auth.Command())
	Root().AddCommand(bootstrap.Command())
	Root().AddCommand(club.Command())
	Root().AddCommand(roster.Command())
}
