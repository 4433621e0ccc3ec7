package main

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/disintegration/imaging"
)

// inlineImageSupported reports whether the terminal speaks the iTerm2 inline
// image protocol (OSC 1337). iTerm2, WezTerm and Windows Terminal do;
// Konsole and kitty use other protocols.
func inlineImageSupported(getenv func(string) string) bool {
	term := strings.ToLower(getenv("TERM"))
	prog := strings.ToLower(getenv("TERM_PROGRAM"))

	switch {
	case getenv("ITERM_SESSION_ID") != "", strings.Contains(prog, "iterm"):
		return true
	case strings.Contains(prog, "wezterm"), strings.Contains(term, "wezterm"):
		return true
	case strings.Contains(prog, "windowsterminal"):
		return true
	}
	return false
}

// writeInlineImage decodes data, scales it down to maxHeight pixels (0 keeps
// the original size) and writes it to w as an inline PNG.
func writeInlineImage(w io.Writer, name string, data []byte, maxHeight int) error {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	if maxHeight > 0 && img.Bounds().Dy() > maxHeight {
		img = imaging.Resize(img, 0, maxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return fmt.Errorf("encode image: %w", err)
	}

	_, err = fmt.Fprintf(w, "\033]1337;File=name=%s;size=%d;inline=1:%s\a\n",
		base64.StdEncoding.EncodeToString([]byte(name)),
		buf.Len(),
		base64.StdEncoding.EncodeToString(buf.Bytes()))
	return err
}
