package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/TTR-x/ttr-gestion-sub002/core/device"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

type registerResponse struct {
	KnownDeviceCount int `json:"known_device_count"`
}

type apiError struct {
	Error string `json:"error"`
}

func (cli *commandLine) newRegisterCommand() *cobra.Command {
	var (
		serverURL, token string
		reg              device.Registration
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register this device with the backend and refresh the known device count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if token == "" || reg.DeviceID == "" {
				_ = cmd.Usage()
				return errHelp
			}
			ctx := cmd.Context()

			count, err := registerDevice(ctx, serverURL, token, reg)
			if err != nil {
				return err
			}

			store, err := cli.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err = store.SetKnownDeviceCount(ctx, count); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "device %s registered; known devices: %d\n", reg.DeviceID, count)
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", cli.conf.Device.ServerURL, "base URL of the API")
	cmd.Flags().StringVar(&token, "token", "", "the member's API token")
	cmd.Flags().StringVar(&reg.DeviceID, "device-id", "", "this device's ID")
	cmd.Flags().StringVar(&reg.Label, "label", "", "a human readable name for this device")
	reg.UserAgent = "ttr-device"
	return cmd
}

// registerDevice posts reg to the API and returns the number of devices it knows for the business.
func registerDevice(ctx context.Context, serverURL, token string, reg device.Registration) (int, error) {
	body, err := json.Marshal(reg)
	if err != nil {
		return 0, errors.Wrap(err, "encoding registration")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/v1/devices", bytes.NewReader(body))
	if err != nil {
		return 0, errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := httpClient.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "registering device")
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		var apiErr apiError
		_ = json.NewDecoder(res.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = http.StatusText(res.StatusCode)
		}
		return 0, fmt.Errorf("registering device: %d %s", res.StatusCode, apiErr.Error)
	}

	var data registerResponse
	if err = json.NewDecoder(res.Body).Decode(&data); err != nil {
		return 0, errors.Wrap(err, "decoding registration response")
	}
	return data.KnownDeviceCount, nil
}
