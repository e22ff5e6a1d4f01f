// Package artifacts owns the fixed file layout of a lesson working directory.
package artifacts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"siksha/internal/fileutil"
	"siksha/internal/services"
)

const (
	PromptsFile  = "image_prompts.txt"
	ImagesDir    = "generated_images"
	ScriptFile   = "script.txt"
	CaptionsFile = "captions.srt"
	AudioFile    = "output.wav"
	VideoFile    = "output_video.mp4"
	FinalFile    = "final_output_video.mp4"
)

// regenerateFiles are removed by Reset, in this order, before ImagesDir.
var regenerateFiles = []string{FinalFile, VideoFile, AudioFile, ScriptFile, CaptionsFile, PromptsFile}

// Layout addresses one lesson folder under the output root.
type Layout struct {
	Root   string
	Folder string
}

// New returns the layout for folder under root.
func New(root, folder string) Layout {
	return Layout{Root: root, Folder: folder}
}

func (l Layout) Dir() string { return filepath.Join(l.Root, l.Folder) }

func (l Layout) Path(name string) string { return filepath.Join(l.Dir(), name) }

func (l Layout) PromptsPath() string { return l.Path(PromptsFile) }
func (l Layout) ImagesPath() string { return l.Path(ImagesDir) }
func (l Layout) ScriptPath() string { return l.Path(ScriptFile) }
func (l Layout) CaptionsPath() string { return l.Path(CaptionsFile) }
func (l Layout) AudioPath() string { return l.Path(AudioFile) }
func (l Layout) VideoPath() string { return l.Path(VideoFile) }
func (l Layout) FinalPath() string { return l.Path(FinalFile) }

// ImagePath returns generated_images/image_NN.png for a 1-based index.
func (l Layout) ImagePath(index int) string {
	return filepath.Join(l.ImagesPath(), ImageName(index))
}

// ImageName formats the 1-based, two-digit image filename.
func ImageName(index int) string {
	return fmt.Sprintf("image_%02d.png", index)
}

// Ensure creates the lesson folder and its image directory.
func (l Layout) Ensure() error {
	if err := os.MkdirAll(l.ImagesPath(), 0o755); err != nil {
		return fmt.Errorf("create lesson directory: %w", err)
	}
	return nil
}

// Images lists the PNG files in the image directory sorted by name.
func (l Layout) Images() ([]string, error) {
	entries, err := os.ReadDir(l.ImagesPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var images []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".png") {
			continue
		}
		images = append(images, filepath.Join(l.ImagesPath(), entry.Name()))
	}
	sort.Strings(images)
	return images, nil
}

// Require fails with ErrMissingArtifact unless name exists and is non-empty.
func (l Layout) Require(stage, name string) error {
	if fileutil.NonEmpty(l.Path(name)) {
		return nil
	}
	return services.Wrap(services.ErrMissingArtifact, stage, "require input", fmt.Sprintf("%s missing or empty in %s", name, l.Folder), nil)
}

// Reset removes the six generated files and the image directory so a new run
// starts from scratch. Missing files are not an error. It returns the names
// that were actually removed.
func (l Layout) Reset() ([]string, error) {
	var removed []string
	for _, name := range regenerateFiles {
		err := os.Remove(l.Path(name))
		switch {
		case err == nil:
			removed = append(removed, name)
		case errors.Is(err, fs.ErrNotExist):
		default:
			return removed, fmt.Errorf("remove %s: %w", name, err)
		}
	}
	if _, err := os.Stat(l.ImagesPath()); err == nil {
		if err := os.RemoveAll(l.ImagesPath()); err != nil {
			return removed, fmt.Errorf("remove %s: %w", ImagesDir, err)
		}
		removed = append(removed, ImagesDir)
	}
	return removed, nil
}

// FinalState describes the delivered video.
type FinalState struct {
	Exists  bool
	Size    int64
	ModTime time.Time
}

// Final reports whether final_output_video.mp4 exists.
func (l Layout) Final() (FinalState, error) {
	info, err := os.Stat(l.FinalPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return FinalState{}, nil
		}
		return FinalState{}, err
	}
	if !info.Mode().IsRegular() {
		return FinalState{}, nil
	}
	return FinalState{Exists: true, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Recent reports whether the final file was written within window of now.
func (s FinalState) Recent(now time.Time, window time.Duration) bool {
	return s.Exists && now.Sub(s.ModTime) < window
}

// VideoURL is the public URL of the final video for folder.
func VideoURL(prefix, folder string) string {
	return path.Join("/", prefix, folder, FinalFile)
}
