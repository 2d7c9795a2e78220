package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-sensor/internal/auth"
	"github.com/nerrad567/gray-logic-sensor/internal/client"
	"github.com/nerrad567/gray-logic-sensor/internal/device"
)

func infoCmd(connect connectFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the sensor record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			info, err := c.Info(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), info)
		},
	}
}

func readingCmd(connect connectFunc) *cobra.Command {
	var waitChange bool
	cmd := &cobra.Command{
		Use:   "reading",
		Short: "Show the current telemetry value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			v, err := c.Reading(cmd.Context())
			if err != nil {
				return err
			}
			if waitChange {
				if v, err = c.WaitReadingChange(cmd.Context(), v, client.DefaultReadingWait); err != nil {
					return err
				}
			}
			return printJSON(cmd.OutOrStdout(), device.Reading(v))
		},
	}
	cmd.Flags().BoolVar(&waitChange, "next", false, "wait for the next new value")
	return cmd
}

func methodsCmd(connect connectFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "methods",
		Short: "List the RPC methods the sensor serves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			names, err := c.Methods(cmd.Context())
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

func setNameCmd(connect connectFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "set-name NAME",
		Short: "Rename the sensor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			info, err := c.SetName(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), info)
		},
	}
}

func setIntervalCmd(connect connectFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "set-interval SECONDS",
		Short: "Set the reading interval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seconds, err := parseSeconds(args[0])
			if err != nil {
				return err
			}
			c, err := connect()
			if err != nil {
				return err
			}
			info, err := c.SetReadingInterval(cmd.Context(), seconds)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), info)
		},
	}
}

func updateCmd(connect connectFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Request a firmware update",
		Args:  cobra.NoArgs,
	}
	wait, opts := waitFlags(cmd, client.DefaultFirmwareWait)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		c, err := connect()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		before, err := c.Info(ctx)
		if err != nil {
			return err
		}
		ack, err := c.UpdateFirmware(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ack)

		if !*wait || ack != string(device.UpdateStarted) {
			return nil
		}
		info, err := c.WaitFirmware(ctx, before.FirmwareVersion+1, *opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "firmware version %d\n", info.FirmwareVersion)
		return nil
	}
	return cmd
}

func rebootCmd(connect connectFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reboot",
		Short: "Reboot the sensor",
		Args:  cobra.NoArgs,
	}
	wait, opts := waitFlags(cmd, client.DefaultOnlineWait)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		c, err := connect()
		if err != nil {
			return err
		}
		ack, err := c.Reboot(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ack)

		if !*wait {
			return nil
		}
		info, err := c.WaitOnline(cmd.Context(), *opts)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), info)
	}
	return cmd
}

func resetCmd(connect connectFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore factory settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			info, err := c.ResetToFactory(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), info)
		},
	}
}

func callCmd(connect connectFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "call METHOD [PARAMS_JSON]",
		Short: "Call any method with raw JSON params",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var params any
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return fmt.Errorf("params are not valid JSON: %s", args[1])
				}
				params = json.RawMessage(args[1])
			}
			c, err := connect()
			if err != nil {
				return err
			}
			raw, err := c.CallRaw(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), raw)
		},
	}
}

func hashPinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-pin PIN",
		Short: "Print an Argon2id hash for security.pin_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPin(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
