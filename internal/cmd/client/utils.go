package client

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/brugmanjoost/drumbeat/internal/cmd/client/transports"
)

// BaseURLFunc provides the base HTTP API URL (e.g., from env or flag).
type BaseURLFunc func() string

// TokenEnv holds the default credential for client commands.
const TokenEnv = "DRUMBEAT_TOKEN"

// transportFor builds the HTTP transport for a command, honouring --token.
var transportFor = func(cmd *cobra.Command, baseURL BaseURLFunc) transports.MessagesTransport {
	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = os.Getenv(TokenEnv)
	}
	return transports.NewHTTPTransport(baseURL(), token)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// jsonFlag reads a flag that must hold a JSON document, if set.
func jsonFlag(cmd *cobra.Command, name string) (json.RawMessage, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return nil, nil
	}
	if !json.Valid([]byte(raw)) {
		return nil, fmt.Errorf("--%s must be valid JSON", name)
	}
	return json.RawMessage(raw), nil
}

func parseIDArg(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid message id %q", s)
	}
	return id, nil
}
