// Package locator holds the DOM query strings used to find Proton Drive UI
// elements. The engine treats them as opaque lookup keys.
package locator

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Set is the full collection of locators the engine consumes.
//
// DownloadFilename, DownloadProgress and DownloadSpeed are children of
// DownloadItem. ItemInfo, ItemInfoFallback and ItemSize are children of
// TableRows.
type Set struct {
	DownloadItem     string `yaml:"download_item"`
	DownloadFilename string `yaml:"download_filename"`
	DownloadProgress string `yaml:"download_progress"`
	DownloadSpeed    string `yaml:"download_speed"`

	FileShareFilename string `yaml:"file_share_filename"`
	FileShareProof    string `yaml:"file_share_proof"`

	IncorrectPasswordPopup string `yaml:"incorrect_password_popup"`
	PasswordInput          string `yaml:"password_input"`

	// ItemInfo is a screen-reader span reading "Folder - <name>" or
	// "File - <mime> - <name>". Rows with thumbnails carry the same text in
	// the alt attribute matched by ItemInfoFallback.
	ItemInfo         string `yaml:"item_info"`
	ItemInfoFallback string `yaml:"item_info_fallback"`
	ItemSize         string `yaml:"item_size"`
	TableRows        string `yaml:"table_rows"`

	// FolderRows, FolderIcon, FolderIconRef and FolderName locate folder
	// entries for crawling: a cell of a FolderRows row is a folder when its
	// FolderIcon element references FolderIconRef.
	FolderRows    string `yaml:"folder_rows"`
	FolderIcon    string `yaml:"folder_icon"`
	FolderIconRef string `yaml:"folder_icon_ref"`
	FolderName    string `yaml:"folder_name"`

	PreviousFolderBreadcrumb string `yaml:"previous_folder_breadcrumb"`
	RootFolderBreadcrumb     string `yaml:"root_folder_breadcrumb"`
	ShareDownloadButton      string `yaml:"share_download_button"`
}

// Default returns the locators matching the current Proton Drive web app.
func Default() Set {
	return Set{
		DownloadItem:     ".transfers-manager-list-item",
		DownloadFilename: ".transfers-manager-list-item-name span[data-testid=transfer-item-name] span",
		DownloadProgress: ".progress-bar",
		DownloadSpeed:    "span[data-testid=transfer-item-status]",

		FileShareFilename: ".inline-flex[aria-label]",
		FileShareProof:    "div.file-preview-container",

		IncorrectPasswordPopup: "div[role=alert].notification--error",
		PasswordInput:          "input[type=password]",

		ItemInfo:         "td[data-testid=column-name] span.sr-only",
		ItemInfoFallback: "td[data-testid=column-name] [alt]",
		ItemSize:         "td[data-testid=column-size] span",
		TableRows:        "tbody > tr.file-browser-list-item",

		FolderRows:    "tbody > tr",
		FolderIcon:    "svg use",
		FolderIconRef: "#mime-sm-folder",
		FolderName:    "[data-testid=name-cell] span",

		PreviousFolderBreadcrumb: ".shared-folder-header-breadcrumbs > .collapsing-breadcrumb:nth-last-child(3)",
		RootFolderBreadcrumb:     "li.collapsing-breadcrumb:nth-child(1)",
		ShareDownloadButton:      "button[data-testid=download-button]",
	}
}

// LoadFile reads a YAML file of overrides on top of Default. Keys that are
// absent or empty keep their default value.
func LoadFile(path string) (Set, error) {
	set := Default()
	if path == "" {
		return set, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("locators: %w", err)
	}
	var overrides Set
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return Set{}, fmt.Errorf("locators: %w", err)
	}
	set.merge(overrides)
	return set, nil
}

func (s *Set) merge(o Set) {
	pick := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	pick(&s.DownloadItem, o.DownloadItem)
	pick(&s.DownloadFilename, o.DownloadFilename)
	pick(&s.DownloadProgress, o.DownloadProgress)
	pick(&s.DownloadSpeed, o.DownloadSpeed)
	pick(&s.FileShareFilename, o.FileShareFilename)
	pick(&s.FileShareProof, o.FileShareProof)
	pick(&s.IncorrectPasswordPopup, o.IncorrectPasswordPopup)
	pick(&s.PasswordInput, o.PasswordInput)
	pick(&s.ItemInfo, o.ItemInfo)
	pick(&s.ItemInfoFallback, o.ItemInfoFallback)
	pick(&s.ItemSize, o.ItemSize)
	pick(&s.TableRows, o.TableRows)
	pick(&s.FolderRows, o.FolderRows)
	pick(&s.FolderIcon, o.FolderIcon)
	pick(&s.FolderIconRef, o.FolderIconRef)
	pick(&s.FolderName, o.FolderName)
	pick(&s.PreviousFolderBreadcrumb, o.PreviousFolderBreadcrumb)
	pick(&s.RootFolderBreadcrumb, o.RootFolderBreadcrumb)
	pick(&s.ShareDownloadButton, o.ShareDownloadButton)
}
