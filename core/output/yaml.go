package output

import (
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"parcel-rate/core/engine"
)

// YAMLFormatter writes the report as YAML with columns in export order
type YAMLFormatter struct{}

// Format implements Formatter
func (f *YAMLFormatter) Format() Format { return FormatYAML }

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

// mapping builds an ordered mapping node, dropping empty values
func mapping(keys, values []string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for i, k := range keys {
		if i >= len(values) || values[i] == "" {
			continue
		}
		n.Content = append(n.Content, scalar(k), scalar(values[i]))
	}
	return n
}

func summaryNode(s *engine.Summary) *yaml.Node {
	keys := []string{"shipments", "priced", "failed", "total_final", "average_final", "compared", "total_carrier", "total_savings", "total_savings_percent"}
	values := []string{
		strconv.Itoa(s.Shipments), strconv.Itoa(s.Priced), strconv.Itoa(s.Failed),
		s.TotalFinal.StringFixed(2), s.AverageFinal.StringFixed(2),
		strconv.Itoa(s.Compared), s.TotalCarrier.StringFixed(2), s.TotalSavings.StringFixed(2),
		money(s.TotalSavingsPercent),
	}
	n := mapping(keys, values)

	zones := &yaml.Node{Kind: yaml.MappingNode}
	for _, z := range s.Zones() {
		zones.Content = append(zones.Content, scalar(strconv.Itoa(z)), scalar(strconv.Itoa(s.ZoneDistribution[z])))
	}
	n.Content = append(n.Content, scalar("zone_distribution"), zones)
	return n
}

// Render implements Formatter
func (f *YAMLFormatter) Render(w io.Writer, report *Report) error {
	doc := &yaml.Node{Kind: yaml.MappingNode}

	meta := &yaml.Node{}
	if err := meta.Encode(report.Metadata); err != nil {
		return err
	}
	doc.Content = append(doc.Content, scalar("metadata"), meta)

	if report.Summary != nil {
		doc.Content = append(doc.Content, scalar("summary"), summaryNode(report.Summary))
	}

	if len(report.Results) > 0 {
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, r := range report.Results {
			seq.Content = append(seq.Content, mapping(ResultColumns, resultRecord(r)))
		}
		doc.Content = append(doc.Content, scalar("results"), seq)
	}

	if g := report.RateTable; g != nil {
		header := rateTableHeader(g, "zone_")
		header[0] = "tier"
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, rec := range rateTableRecords(g) {
			seq.Content = append(seq.Content, mapping(header, rec))
		}
		doc.Content = append(doc.Content, scalar("rate_table"), seq)

		cov := &yaml.Node{}
		if err := cov.Encode(g.Coverage); err != nil {
			return err
		}
		doc.Content = append(doc.Content, scalar("coverage"), cov)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
