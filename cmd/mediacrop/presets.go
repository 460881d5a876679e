package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/lipgloss/v2/table"
	"github.com/spf13/cobra"

	"thirdcoast.systems/mediacrop/pkg/ffmpeg"
)

func newPresetsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List video export presets supported by the local ffmpeg",
		RunE: func(cmd *cobra.Command, args []string) error {
			encoders, err := ffmpeg.Encoders(cmd.Context())
			if err != nil {
				return err
			}
			rows, optErr := presetRows(encoders, a.cfg.VideoExportPreset)
			if _, err := lipgloss.Fprintln(cmd.OutOrStdout(), presetTable(rows)); err != nil {
				return err
			}
			if optErr != nil {
				a.logger.Warn("No default export preset available", "error", optErr)
			}
			return nil
		},
	}
}

// presetRows describes every export preset against the local encoders. The
// error reports that no preset qualifies as the default.
func presetRows(encoders ffmpeg.EncoderSet, configured string) ([][]string, error) {
	optimal, optErr := ffmpeg.OptimalExportPreset(encoders)

	var rows [][]string
	for _, name := range ffmpeg.ExportPresetNames() {
		p, _ := ffmpeg.LookupExportPreset(name)
		size := "source"
		if p.MaxWidth > 0 {
			size = fmt.Sprintf("%dx%d", p.MaxWidth, p.MaxHeight)
		}
		encoder := p.Encoder
		if encoder == "" {
			encoder = "copy"
		}
		mark := "no"
		if p.Supported(encoders) {
			mark = "yes"
		}
		if optErr == nil && name == optimal.Name {
			mark += " (default)"
		}
		if name == configured {
			mark += " (configured)"
		}
		rows = append(rows, []string{name, size, encoder, mark})
	}
	return rows, optErr
}

func presetTable(rows [][]string) *table.Table {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderColumn(false).
		Headers("PRESET", "MAX SIZE", "ENCODER", "SUPPORTED").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
}
