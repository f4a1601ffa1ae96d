package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/ntfstools/imgdelta/image"
)

// inspectOutput is the JSON form of an image or delta header.
type inspectOutput struct {
	Kind             string `json:"kind"`
	Version          string `json:"version"`
	ClusterSize      uint32 `json:"clusterSize"`
	DeviceSize       int64  `json:"deviceSize"`
	Clusters         int64  `json:"clusters"`
	ClustersInUse    int64  `json:"clustersInUse"`
	BackupBootSector bool   `json:"backupBootSector"`
	ExtraBytes       int    `json:"extraBytes"`
}

func newInspectOutput(hdr *image.Header) inspectOutput {
	return inspectOutput{
		Kind:             hdr.Kind.String(),
		Version:          fmt.Sprintf("%d.%d", hdr.Major, hdr.Minor),
		ClusterSize:      hdr.ClusterSize,
		DeviceSize:       hdr.DeviceSize,
		Clusters:         hdr.Clusters,
		ClustersInUse:    hdr.ClustersInUse,
		BackupBootSector: hdr.BackupBootSector(),
		ExtraBytes:       len(hdr.Extra),
	}
}

func newInspectCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Show the header of an image or delta",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.OutOrStdout(), args[0], asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the header as JSON")
	return cmd
}

func runInspect(out io.Writer, path string, asJSON bool) error {
	in, err := openInput(path)
	if err != nil {
		return err
	}
	defer in.Close()

	hdr, err := image.DecodeHeader(in)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "    ")
		return enc.Encode(newInspectOutput(hdr))
	}

	inUse := units.BytesSize(float64(hdr.ClustersInUse) * float64(hdr.ClusterSize))
	fmt.Fprintf(out, "Kind:               %s\n", hdr.Kind)
	fmt.Fprintf(out, "Version:            %d.%d\n", hdr.Major, hdr.Minor)
	fmt.Fprintf(out, "Cluster size:       %d\n", hdr.ClusterSize)
	fmt.Fprintf(out, "Device size:        %s (%d bytes)\n", units.BytesSize(float64(hdr.DeviceSize)), hdr.DeviceSize)
	fmt.Fprintf(out, "Clusters:           %d\n", hdr.Clusters)
	fmt.Fprintf(out, "Clusters in use:    %d (%s)\n", hdr.ClustersInUse, inUse)
	fmt.Fprintf(out, "Backup boot sector: %v\n", hdr.BackupBootSector())
	fmt.Fprintf(out, "Extra metadata:     %d bytes\n", len(hdr.Extra))
	return nil
}
