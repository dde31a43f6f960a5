package parser

// Strategy identifies which heuristic located the data source.
type Strategy int

const (
	// StrategyNone means no candidate was found
	StrategyNone Strategy = iota

	// StrategyStructural matches a table by class or id markers
	StrategyStructural

	// StrategyContent matches the first table mentioning a domain keyword
	StrategyContent

	// StrategyLargestTable picks the table with the most rows
	StrategyLargestTable

	// StrategyContainer turns keyword-classed div/li/article elements into records
	StrategyContainer

	// StrategyLooseText turns keyword-bearing text elements into records
	StrategyLooseText

	// StrategyScriptJSON reads flat JSON objects embedded in script tags
	StrategyScriptJSON
)

// String returns the string representation of the strategy
func (s Strategy) String() string {
	switch s {
	case StrategyNone:
		return "none"
	case StrategyStructural:
		return "structural"
	case StrategyContent:
		return "content"
	case StrategyLargestTable:
		return "largest_table"
	case StrategyContainer:
		return "container"
	case StrategyLooseText:
		return "loose_text"
	case StrategyScriptJSON:
		return "script_json"
	default:
		return "unknown"
	}
}

// Tabular reports whether records of this strategy come from row/column decomposition.
func (s Strategy) Tabular() bool {
	return s == StrategyStructural || s == StrategyContent || s == StrategyLargestTable
}

// Config holds the keyword lists and thresholds driving the heuristics.
// All keyword comparisons are case-insensitive.
type Config struct {
	TableClassMarkers []string `yaml:"table_class_markers"`
	TableIDMarkers    []string `yaml:"table_id_markers"`
	ContentKeywords   []string `yaml:"content_keywords"`
	HeaderKeywords    []string `yaml:"header_keywords"`
	ContainerKeywords []string `yaml:"container_keywords"`
	LooseKeywords     []string `yaml:"loose_keywords"`
	ScriptKeys        []string `yaml:"script_keys"`

	// ContainerTextKeywords must appear in a container's text for it to
	// become a record.
	ContainerTextKeywords []string `yaml:"container_text_keywords"`

	// MinContainerText is the minimum text length for a container record.
	MinContainerText int `yaml:"min_container_text"`
	// MinLooseText is the length a loose text element must exceed.
	MinLooseText int `yaml:"min_loose_text"`

	// ScanScripts enables the script JSON strategy after loose text.
	ScanScripts bool `yaml:"scan_scripts"`
}

// DefaultConfig returns the keyword set tuned for tender listing portals.
func DefaultConfig() Config {
	return Config{
		TableClassMarkers: []string{"datatable", "list"},
		TableIDMarkers:    []string{"opportunity", "tender"},
		ContentKeywords:   []string{"tender", "opportunity"},
		HeaderKeywords: []string{
			"title", "number", "date", "organization",
			"reference", "status", "closing", "description",
		},
		ContainerKeywords: []string{"tender", "opportunity", "bid", "listing", "item", "row"},
		ContainerTextKeywords: []string{
			"tender", "opportunity", "bid", "rfp", "rfq", "closing",
		},
		LooseKeywords: []string{
			"tender", "opportunity", "bid", "rfp", "rfq",
			"procurement", "closing date", "reference number",
		},
		ScriptKeys:       []string{"tender", "opportunity", "bid", "title", "name"},
		MinContainerText: 50,
		MinLooseText:     20,
	}
}

// withDefaults fills empty lists and zero thresholds from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if len(c.TableClassMarkers) == 0 {
		c.TableClassMarkers = d.TableClassMarkers
	}
	if len(c.TableIDMarkers) == 0 {
		c.TableIDMarkers = d.TableIDMarkers
	}
	if len(c.ContentKeywords) == 0 {
		c.ContentKeywords = d.ContentKeywords
	}
	if len(c.HeaderKeywords) == 0 {
		c.HeaderKeywords = d.HeaderKeywords
	}
	if len(c.ContainerKeywords) == 0 {
		c.ContainerKeywords = d.ContainerKeywords
	}
	if len(c.ContainerTextKeywords) == 0 {
		c.ContainerTextKeywords = d.ContainerTextKeywords
	}
	if len(c.LooseKeywords) == 0 {
		c.LooseKeywords = d.LooseKeywords
	}
	if len(c.ScriptKeys) == 0 {
		c.ScriptKeys = d.ScriptKeys
	}
	if c.MinContainerText <= 0 {
		c.MinContainerText = d.MinContainerText
	}
	if c.MinLooseText <= 0 {
		c.MinLooseText = d.MinLooseText
	}
	return c
}
