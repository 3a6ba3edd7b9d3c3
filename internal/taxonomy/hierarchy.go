package taxonomy

import (
	"fmt"
	"strconv"
	"strings"
)

// Area groups ten categories, e.g. 10-19.
type Area struct {
	ID       int64
	Start    int
	End      int
	Name     string
	RootPath string
}

// Range renders the area's number range.
func (a Area) Range() string {
	return FormatAreaRange(a.Start, a.End)
}

// Category is a two digit bucket inside an area.
type Category struct {
	ID        int64
	Number    int
	Name      string
	AreaStart int
}

// FolderTarget is the read-only projection of a folder used for matching and
// destination synthesis.
type FolderTarget struct {
	ID             int64
	Number         string
	Name           string
	CategoryNumber int
	CategoryName   string
	AreaRange      string
	AreaName       string
	StoragePath    string
	AreaRoot       string
	Keywords       []string
}

// Hierarchy is an ordered snapshot of every folder with its ancestry.
type Hierarchy struct {
	Folders []FolderTarget
	index   map[string]int
}

// NewHierarchy indexes folders in the given order.
func NewHierarchy(folders []FolderTarget) Hierarchy {
	index := make(map[string]int, len(folders))
	for i, folder := range folders {
		if _, exists := index[folder.Number]; !exists {
			index[folder.Number] = i
		}
	}
	return Hierarchy{Folders: folders, index: index}
}

// FolderByNumber returns the folder with an exact "CC.SS" number.
func (h Hierarchy) FolderByNumber(number string) (FolderTarget, bool) {
	number = strings.TrimSpace(number)
	if h.index != nil {
		i, ok := h.index[number]
		if !ok {
			return FolderTarget{}, false
		}
		return h.Folders[i], true
	}
	for _, folder := range h.Folders {
		if folder.Number == number {
			return folder, true
		}
	}
	return FolderTarget{}, false
}

// FirstInCategory returns the first folder whose category number equals category.
func (h Hierarchy) FirstInCategory(category string) (FolderTarget, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(category))
	if err != nil {
		return FolderTarget{}, false
	}
	for _, folder := range h.Folders {
		if folder.CategoryNumber == n {
			return folder, true
		}
	}
	return FolderTarget{}, false
}

// FirstInAreaRange returns the first folder whose category number falls in the
// inclusive range encoded by areaRange ("10-19").
func (h Hierarchy) FirstInAreaRange(areaRange string) (FolderTarget, bool) {
	start, end, err := ParseAreaRange(areaRange)
	if err != nil {
		return FolderTarget{}, false
	}
	for _, folder := range h.Folders {
		if folder.CategoryNumber >= start && folder.CategoryNumber <= end {
			return folder, true
		}
	}
	return FolderTarget{}, false
}

// Resolve maps a rule target onto a concrete folder.
func (h Hierarchy) Resolve(targetType TargetType, targetID string) (FolderTarget, bool) {
	switch targetType {
	case TargetFolder:
		return h.FolderByNumber(targetID)
	case TargetCategory:
		return h.FirstInCategory(targetID)
	case TargetArea:
		return h.FirstInAreaRange(targetID)
	default:
		return FolderTarget{}, false
	}
}

// FormatAreaRange renders start/end as "10-19".
func FormatAreaRange(start, end int) string {
	return fmt.Sprintf("%02d-%02d", start, end)
}

// ParseAreaRange parses "10-19" into its bounds.
func ParseAreaRange(value string) (int, int, error) {
	left, right, ok := strings.Cut(strings.TrimSpace(value), "-")
	if !ok {
		return 0, 0, fmt.Errorf("area range %q: expected start-end", value)
	}
	start, err := strconv.Atoi(strings.TrimSpace(left))
	if err != nil {
		return 0, 0, fmt.Errorf("area range %q: %w", value, err)
	}
	end, err := strconv.Atoi(strings.TrimSpace(right))
	if err != nil {
		return 0, 0, fmt.Errorf("area range %q: %w", value, err)
	}
	if start < 0 || end < start || end > 99 {
		return 0, 0, fmt.Errorf("area range %q: bounds out of order", value)
	}
	return start, end, nil
}

// ParseFolderNumber splits "CC.SS" into category and sequence numbers.
func ParseFolderNumber(value string) (int, int, error) {
	left, right, ok := strings.Cut(strings.TrimSpace(value), ".")
	if !ok || len(left) != 2 || len(right) != 2 {
		return 0, 0, fmt.Errorf("folder number %q: expected CC.SS", value)
	}
	category, err := strconv.Atoi(left)
	if err != nil {
		return 0, 0, fmt.Errorf("folder number %q: %w", value, err)
	}
	seq, err := strconv.Atoi(right)
	if err != nil {
		return 0, 0, fmt.Errorf("folder number %q: %w", value, err)
	}
	return category, seq, nil
}

// ParseCategoryNumber validates a two digit category number.
func ParseCategoryNumber(value string) (int, error) {
	value = strings.TrimSpace(value)
	if len(value) != 2 {
		return 0, fmt.Errorf("category number %q: expected two digits", value)
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("category number %q: %w", value, err)
	}
	return n, nil
}
