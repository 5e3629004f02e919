package model

// Show represents a movie in the catalog together with the
// screenings that are offered for it.  Shows are immutable seed
// data; nothing in the booking engine ever mutates them.
//
// Fields:
//  ID          - catalog identifier ("1", "2", ...).
//  Title       - movie title, snapshotted onto receipts.
//  Description - free text synopsis.
//  Duration    - human readable running time ("3h 1m").
//  Rating      - audience rating as displayed ("8.4").
//  Genre       - comma separated genres.
//  Language    - spoken language.
//  Image       - poster URL.
//  Showtimes   - ordered screenings of this show.
type Show struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Duration    string     `json:"duration"`
	Rating      string     `json:"rating"`
	Genre       string     `json:"genre"`
	Language    string     `json:"language"`
	Image       string     `json:"image,omitempty"`
	Showtimes   []Showtime `json:"showtimes"`
}

// Showtime is a single screening of a Show.  Price is the base
// (regular tier) seat price; premium and vip prices are derived
// from it by the seat map.
//
// Fields:
//  ID       - unique showtime identifier ("1-1").
//  ShowID   - owning show.
//  Date     - screening date, "2006-01-02".
//  Time     - screening time as displayed ("10:00 AM").
//  Price    - regular tier price in whole currency units.
//  Capacity - total seat capacity of the auditorium.
type Showtime struct {
	ID       string `json:"id"`
	ShowID   string `json:"show_id"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Price    int64  `json:"price"`
	Capacity int    `json:"capacity"`
}

// Label renders the showtime the way receipts display it.
func (st Showtime) Label() string {
	return st.Date + " " + st.Time
}
