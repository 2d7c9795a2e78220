package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nerrad567/gray-logic-sensor/internal/client"
)

const (
	keyURL     = "url"
	keyPin     = "pin"
	keyTimeout = "timeout"

	defaultURL = "http://127.0.0.1:8000"
)

// newRootCmd builds the command tree. Each call gets its own viper
// instance so tests do not share flag state.
func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SENSORCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "sensorctl",
		Short:         "Control a Gray Logic sensor over JSON-RPC",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String(keyURL, defaultURL, "sensor base URL")
	flags.String(keyPin, "", "sensor access pin")
	flags.Duration(keyTimeout, client.DefaultTimeout, "per-request timeout")
	for _, key := range []string{keyURL, keyPin, keyTimeout} {
		//nolint:errcheck // flag names are defined just above
		v.BindPFlag(key, flags.Lookup(key))
	}

	connect := func() (*client.Client, error) {
		pin := v.GetString(keyPin)
		if pin == "" {
			return nil, errors.New("a pin is required (--pin or SENSORCTL_PIN)")
		}
		return client.New(v.GetString(keyURL), pin, client.WithTimeout(v.GetDuration(keyTimeout))), nil
	}

	root.AddCommand(
		infoCmd(connect),
		readingCmd(connect),
		methodsCmd(connect),
		setNameCmd(connect),
		setIntervalCmd(connect),
		updateCmd(connect),
		rebootCmd(connect),
		resetCmd(connect),
		callCmd(connect),
		hashPinCmd(),
		versionCmd(),
	)
	return root
}

type connectFunc func() (*client.Client, error)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// waitFlags registers --wait and --attempts/--interval on cmd.
func waitFlags(cmd *cobra.Command, def client.WaitOptions) (*bool, *client.WaitOptions) {
	wait := new(bool)
	opts := &client.WaitOptions{}
	cmd.Flags().BoolVar(wait, "wait", false, "poll until the operation has completed")
	cmd.Flags().IntVar(&opts.Attempts, "attempts", def.Attempts, "polling attempts with --wait")
	cmd.Flags().DurationVar(&opts.Interval, "interval", def.Interval, "delay between polling attempts")
	return wait, opts
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Commit)
		},
	}
}

// parseSeconds accepts "10" or a Go duration such as "1m".
func parseSeconds(s string) (float64, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d.Seconds(), nil
	}
	var f float64
	if _, err := fmt.Sscan(s, &f); err != nil {
		return 0, fmt.Errorf("invalid interval %q", s)
	}
	return f, nil
}
