package pdf

import (
	"fmt"

	"github.com/ledongthuc/pdf"
)

// Info is the page count and document information dictionary of a PDF.
type Info struct {
	Pages        int    `json:"pages" yaml:"pages"`
	Title        string `json:"title,omitempty" yaml:"title,omitempty"`
	Author       string `json:"author,omitempty" yaml:"author,omitempty"`
	Subject      string `json:"subject,omitempty" yaml:"subject,omitempty"`
	Creator      string `json:"creator,omitempty" yaml:"creator,omitempty"`
	Producer     string `json:"producer,omitempty" yaml:"producer,omitempty"`
	CreationDate string `json:"creation_date,omitempty" yaml:"creation_date,omitempty"`
	ModDate      string `json:"mod_date,omitempty" yaml:"mod_date,omitempty"`
}

// ReadInfo opens the PDF at path and reads its metadata. Missing dictionary
// entries are left empty.
func ReadInfo(path string) (Info, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	dict := r.Trailer().Key("Info")
	return Info{
		Pages:        r.NumPage(),
		Title:        dict.Key("Title").Text(),
		Author:       dict.Key("Author").Text(),
		Subject:      dict.Key("Subject").Text(),
		Creator:      dict.Key("Creator").Text(),
		Producer:     dict.Key("Producer").Text(),
		CreationDate: dict.Key("CreationDate").Text(),
		ModDate:      dict.Key("ModDate").Text(),
	}, nil
}
