package anki

import (
	"archive/zip"
	"crypto/sha1"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"codeberg.org/snonux/studycards/internal"
)

// APKGGenerator creates Anki package files (.apkg)
type APKGGenerator struct {
	deckName string
	deckID   int64
	modelID  int64
	notes    []Note
	media    []string          // zip entry number -> media name
	mediaFor map[string]string // source path -> media name
	now      func() time.Time
}

// NewAPKGGenerator creates a new APKG generator
func NewAPKGGenerator(deckName string) *APKGGenerator {
	now := time.Now().UnixMilli()
	return &APKGGenerator{
		deckName: deckName,
		deckID:   now,
		modelID:  now + 1,
		mediaFor: make(map[string]string),
		now:      time.Now,
	}
}

// AddNote adds a note to the package
func (g *APKGGenerator) AddNote(note Note) {
	g.notes = append(g.notes, note)
}

// GenerateAPKG writes the package to outputPath
func (g *APKGGenerator) GenerateAPKG(outputPath string) error {
	tempDir, err := os.MkdirTemp("", "studycards_apkg_*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	// Media first, the note fields refer to the assigned names
	for _, note := range g.notes {
		for _, src := range []string{note.ImageFile, note.AudioFile} {
			if err := g.addMedia(tempDir, src); err != nil {
				return err
			}
		}
	}

	if err := g.writeMediaIndex(tempDir); err != nil {
		return fmt.Errorf("failed to create media mapping: %w", err)
	}

	if err := g.createDatabase(filepath.Join(tempDir, "collection.anki2")); err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}

	if err := zipDir(tempDir, outputPath); err != nil {
		return fmt.Errorf("failed to create zip package: %w", err)
	}
	return nil
}

// addMedia copies src into dir under the next media number. Missing files
// are skipped.
func (g *APKGGenerator) addMedia(dir, src string) error {
	if src == "" {
		return nil
	}
	if _, ok := g.mediaFor[src]; ok {
		return nil
	}
	if _, err := os.Stat(src); err != nil {
		return nil
	}

	name := fmt.Sprintf("%d_%s", len(g.media), internal.SanitizeFilename(filepath.Base(src)))
	target := filepath.Join(dir, strconv.Itoa(len(g.media)))
	if err := copyFile(src, target); err != nil {
		return fmt.Errorf("failed to copy media file %s: %w", src, err)
	}
	g.media = append(g.media, name)
	g.mediaFor[src] = name
	return nil
}

func (g *APKGGenerator) writeMediaIndex(dir string) error {
	index := make(map[string]string, len(g.media))
	for i, name := range g.media {
		index[strconv.Itoa(i)] = name
	}
	data, err := json.Marshal(index)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "media"), data, 0644)
}

func (g *APKGGenerator) createDatabase(dbPath string) error {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := g.insertCollection(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to insert collection: %w", err)
	}
	if err := g.insertNotes(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to insert notes: %w", err)
	}
	return tx.Commit()
}

// schema is the Anki 2.1 legacy collection layout (schema version 11).
var schema = []string{
	`CREATE TABLE col (id integer PRIMARY KEY, crt integer NOT NULL, mod integer NOT NULL,
		scm integer NOT NULL, ver integer NOT NULL, dty integer NOT NULL, usn integer NOT NULL,
		ls integer NOT NULL, conf text NOT NULL, models text NOT NULL, decks text NOT NULL,
		dconf text NOT NULL, tags text NOT NULL)`,
	`CREATE TABLE notes (id integer PRIMARY KEY, guid text NOT NULL, mid integer NOT NULL,
		mod integer NOT NULL, usn integer NOT NULL, tags text NOT NULL, flds text NOT NULL,
		sfld text NOT NULL, csum integer NOT NULL, flags integer NOT NULL, data text NOT NULL)`,
	`CREATE TABLE cards (id integer PRIMARY KEY, nid integer NOT NULL, did integer NOT NULL,
		ord integer NOT NULL, mod integer NOT NULL, usn integer NOT NULL, type integer NOT NULL,
		queue integer NOT NULL, due integer NOT NULL, ivl integer NOT NULL, factor integer NOT NULL,
		reps integer NOT NULL, lapses integer NOT NULL, left integer NOT NULL, odue integer NOT NULL,
		odid integer NOT NULL, flags integer NOT NULL, data text NOT NULL)`,
	`CREATE TABLE revlog (id integer PRIMARY KEY, cid integer NOT NULL, usn integer NOT NULL,
		ease integer NOT NULL, ivl integer NOT NULL, lastIvl integer NOT NULL, factor integer NOT NULL,
		time integer NOT NULL, type integer NOT NULL)`,
	`CREATE TABLE graves (usn integer NOT NULL, oid integer NOT NULL, type integer NOT NULL)`,
	`CREATE INDEX ix_notes_csum ON notes (csum)`,
	`CREATE INDEX ix_notes_usn ON notes (usn)`,
	`CREATE INDEX ix_cards_usn ON cards (usn)`,
	`CREATE INDEX ix_cards_nid ON cards (nid)`,
	`CREATE INDEX ix_cards_sched ON cards (did, queue, due)`,
	`CREATE INDEX ix_revlog_usn ON revlog (usn)`,
	`CREATE INDEX ix_revlog_cid ON revlog (cid)`,
}

type deck struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Mod       int64  `json:"mod"`
	Desc      string `json:"desc"`
	Collapsed bool   `json:"collapsed"`
	Dyn       int    `json:"dyn"`
	Conf      int    `json:"conf"`
	USN       int    `json:"usn"`
	NewToday  [2]int `json:"newToday"`
	RevToday  [2]int `json:"revToday"`
	LrnToday  [2]int `json:"lrnToday"`
	TimeToday [2]int `json:"timeToday"`
	ExtendNew int    `json:"extendNew"`
	ExtendRev int    `json:"extendRev"`
}

type field struct {
	Name   string   `json:"name"`
	Ord    int      `json:"ord"`
	Sticky bool     `json:"sticky"`
	RTL    bool     `json:"rtl"`
	Font   string   `json:"font"`
	Size   int      `json:"size"`
	Media  []string `json:"media"`
}

type template struct {
	Name  string      `json:"name"`
	Ord   int         `json:"ord"`
	QFmt  string      `json:"qfmt"`
	AFmt  string      `json:"afmt"`
	DID   interface{} `json:"did"`
	BQFmt string      `json:"bqfmt"`
	BAFmt string      `json:"bafmt"`
}

type model struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Type      int             `json:"type"`
	Mod       int64           `json:"mod"`
	USN       int             `json:"usn"`
	SortF     int             `json:"sortf"`
	DID       int64           `json:"did"`
	Req       [][]interface{} `json:"req"`
	Vers      []int           `json:"vers"`
	Tags      []string        `json:"tags"`
	LatexPre  string          `json:"latexPre"`
	LatexPost string          `json:"latexPost"`
	Flds      []field         `json:"flds"`
	Tmpls     []template      `json:"tmpls"`
	CSS       string          `json:"css"`
}

// Note type fields in storage order
var fieldNames = []string{"Front", "Phonetic", "Back", "Image", "Audio"}

func (g *APKGGenerator) noteType(now int64) model {
	fields := make([]field, len(fieldNames))
	for i, name := range fieldNames {
		fields[i] = field{Name: name, Ord: i, Font: "Arial", Size: 20, Media: []string{}}
	}
	return model{
		ID:        g.modelID,
		Name:      "studycards vocabulary (Basic + Reverse)",
		Mod:       now,
		USN:       -1,
		DID:       g.deckID,
		Req:       [][]interface{}{{0, "all", []int{0}}, {1, "all", []int{2}}},
		Vers:      []int{},
		Tags:      []string{},
		LatexPre:  "\\documentclass[12pt]{article}\n\\special{papersize=3in,5in}\n\\usepackage[utf8]{inputenc}\n\\pagestyle{empty}\n\\begin{document}",
		LatexPost: "\\end{document}",
		Flds:      fields,
		Tmpls: []template{
			{Name: "Forward", Ord: 0, QFmt: forwardFront, AFmt: forwardBack},
			{Name: "Reverse", Ord: 1, QFmt: reverseFront, AFmt: reverseBack},
		},
		CSS: cardCSS,
	}
}

const (
	forwardFront = `<div class="front">{{#Image}}<div class="image-container">{{Image}}</div>{{/Image}}
<div class="name">{{Front}}</div>{{#Phonetic}}<div class="phonetic">{{Phonetic}}</div>{{/Phonetic}}</div>`
	forwardBack = `{{FrontSide}}<hr id="answer"><div class="back">{{Back}}{{#Audio}}<div class="audio">{{Audio}}</div>{{/Audio}}</div>`
	reverseFront = `<div class="back">{{Back}}</div>`
	reverseBack  = `{{FrontSide}}<hr id="answer"><div class="front"><div class="name">{{Front}}</div>
{{#Image}}<div class="image-container">{{Image}}</div>{{/Image}}{{#Audio}}<div class="audio">{{Audio}}</div>{{/Audio}}</div>`
	cardCSS = `.card { font-family: Arial, sans-serif; font-size: 20px; text-align: center; color: #333; background-color: white; }
.name { font-size: 32px; font-weight: bold; color: #2c3e50; margin: 20px 0; }
.phonetic { color: #7f8c8d; }
.definition { margin: 12px 0; }
.meaning { font-weight: bold; }
.example { font-style: italic; color: #555; }
.image-container img { max-width: 400px; height: auto; border-radius: 8px; }
hr#answer { margin: 30px 0; border: 0; border-top: 1px solid #ecf0f1; }`
)

func (g *APKGGenerator) insertCollection(tx *sql.Tx) error {
	now := g.now().Unix()

	decks := map[string]deck{
		"1": {ID: 1, Name: "Default", Mod: now, Conf: 1, ExtendNew: 10, ExtendRev: 50},
		strconv.FormatInt(g.deckID, 10): {
			ID: g.deckID, Name: g.deckName, Mod: now, Conf: 1,
			Desc:      "Vocabulary cards exported by studycards",
			ExtendNew: 10, ExtendRev: 50,
		},
	}
	models := map[string]model{strconv.FormatInt(g.modelID, 10): g.noteType(now)}
	conf := map[string]interface{}{
		"nextPos":      1,
		"estTimes":     true,
		"activeDecks":  []int64{1},
		"sortType":     "noteFld",
		"addToCur":     true,
		"curDeck":      1,
		"dueCounts":    true,
		"collapseTime": 1200,
		"schedVer":     1,
		"curModel":     strconv.FormatInt(g.modelID, 10),
	}
	dconf := map[string]interface{}{
		"1": map[string]interface{}{
			"id": 1, "name": "Default", "dyn": 0, "usn": 0, "mod": now,
			"new":      map[string]interface{}{"delays": []int{1, 10}, "ints": []int{1, 4, 7}, "initialFactor": 2500, "perDay": 20, "order": 1},
			"lapse":    map[string]interface{}{"delays": []int{10}, "mult": 0, "minInt": 1, "leechFails": 8, "leechAction": 0},
			"rev":      map[string]interface{}{"perDay": 100, "ease4": 1.3, "fuzz": 0.05, "maxIvl": 36500, "ivlFct": 1},
			"maxTaken": 60, "autoplay": true, "replayq": true,
		},
	}

	values := make([]string, 0, 4)
	for _, v := range []interface{}{conf, models, decks, dconf} {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		values = append(values, string(data))
	}

	_, err := tx.Exec(`INSERT INTO col VALUES (1, ?, ?, ?, 11, 0, 0, 0, ?, ?, ?, ?, '{}')`,
		now, now*1000, now*1000, values[0], values[1], values[2], values[3])
	return err
}

func (g *APKGGenerator) insertNotes(tx *sql.Tx) error {
	noteStmt, err := tx.Prepare(`INSERT INTO notes VALUES (?, ?, ?, ?, -1, ?, ?, ?, ?, 0, '')`)
	if err != nil {
		return err
	}
	defer noteStmt.Close()

	cardStmt, err := tx.Prepare(`INSERT INTO cards VALUES (?, ?, ?, ?, ?, -1, 0, 0, ?, 0, 0, 0, 0, 0, 0, 0, 0, '')`)
	if err != nil {
		return err
	}
	defer cardStmt.Close()

	now := g.now()
	base := now.UnixMilli()
	for i, note := range g.notes {
		noteID := base + int64(i*3)

		fields := strings.Join([]string{
			note.Front,
			note.Phonetic,
			note.Back,
			g.mediaField(note.ImageFile, imageField),
			g.mediaField(note.AudioFile, audioField),
		}, "\x1f")
		tags := ""
		if len(note.Tags) > 0 {
			tags = " " + strings.Join(note.Tags, " ") + " "
		}

		if _, err := noteStmt.Exec(noteID, uuid.NewString(), g.modelID, now.Unix(), tags, fields, note.Front, checksum(note.Front)); err != nil {
			return fmt.Errorf("note %q: %w", note.Front, err)
		}

		// Forward and reverse card, due is the new-card position
		for ord := 0; ord < 2; ord++ {
			if _, err := cardStmt.Exec(noteID+1+int64(ord), noteID, g.deckID, ord, now.Unix(), i*2+ord+1); err != nil {
				return fmt.Errorf("card %q: %w", note.Front, err)
			}
		}
	}
	return nil
}

func (g *APKGGenerator) mediaField(src string, format func(string, bool) string) string {
	name, ok := g.mediaFor[src]
	return format(name, ok)
}

// checksum is Anki's csum: the first 8 hex digits of the SHA1 of the sort
// field as an integer.
func checksum(s string) int64 {
	sum := sha1.Sum([]byte(s))
	return int64(binary.BigEndian.Uint32(sum[:4]))
}

// zipDir packs every regular file of dir into a zip at outputPath
func zipDir(dir, outputPath string) error {
	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer out.Close()

	archive := zip.NewWriter(out)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := addZipEntry(archive, filepath.Join(dir, entry.Name()), entry.Name()); err != nil {
			return err
		}
	}
	if err := archive.Close(); err != nil {
		return err
	}
	return out.Close()
}

func addZipEntry(archive *zip.Writer, path, name string) error {
	w, err := archive.Create(name)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
