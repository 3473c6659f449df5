package firefox

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pierrec/lz4/v4"

	"github.com/lotas/tabspeicher/internal/types"
)

// mozlz4 header: 8-byte magic "mozLz40\x00"
var mozLz4Magic = []byte("mozLz40\x00")

// DecompressMozLz4 decompresses data in Mozilla's mozlz4 format:
// 8-byte magic + 4-byte LE uint32 uncompressed size + lz4 block data.
func DecompressMozLz4(data []byte) ([]byte, error) {
	const headerSize = 12 // 8 magic + 4 size

	if len(data) < headerSize {
		return nil, fmt.Errorf("mozlz4: data too short (%d bytes)", len(data))
	}
	for i := 0; i < len(mozLz4Magic); i++ {
		if data[i] != mozLz4Magic[i] {
			return nil, fmt.Errorf("mozlz4: invalid header magic")
		}
	}

	uncompressedSize := binary.LittleEndian.Uint32(data[8:12])

	dst := make([]byte, uncompressedSize)
	n, err := lz4.UncompressBlock(data[headerSize:], dst)
	if err != nil {
		return nil, fmt.Errorf("mozlz4: decompress failed: %w", err)
	}
	return dst[:n], nil
}

// Raw JSON types for the Firefox session file. A tab carries its full
// back/forward history; index points at the current entry (1-based).
type rawEntry struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type rawTab struct {
	Entries []rawEntry `json:"entries"`
	Index   int        `json:"index"`
	Image   string     `json:"image"`
}

type rawWindow struct {
	Tabs []rawTab `json:"tabs"`
}

type rawSession struct {
	Windows []rawWindow `json:"windows"`
}

// ParseSessionTabs flattens a session file's windows into the current
// page of every open tab, in window then tab order. Session tabs are not
// live browser tabs, so BrowserID stays zero and they can never be
// closed back.
func ParseSessionTabs(data []byte) ([]types.WireTab, error) {
	var raw rawSession
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse session JSON: %w", err)
	}

	var tabs []types.WireTab
	for _, window := range raw.Windows {
		for _, rt := range window.Tabs {
			if len(rt.Entries) == 0 {
				continue
			}
			entryIdx := rt.Index - 1
			if entryIdx < 0 || entryIdx >= len(rt.Entries) {
				entryIdx = len(rt.Entries) - 1
			}
			entry := rt.Entries[entryIdx]

			tabs = append(tabs, types.WireTab{
				URL:     entry.URL,
				Title:   entry.Title,
				Favicon: rt.Image,
			})
		}
	}
	return tabs, nil
}

// ReadSessionTabs reads the profile's session store and returns the
// currently open tabs.
func ReadSessionTabs(profileDir string) ([]types.WireTab, error) {
	path := sessionFilePath(profileDir)
	if path == "" {
		return nil, fmt.Errorf("no session file found in %s", profileDir)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	decompressed, err := DecompressMozLz4(data)
	if err != nil {
		return nil, fmt.Errorf("decompress session file: %w", err)
	}
	return ParseSessionTabs(decompressed)
}
