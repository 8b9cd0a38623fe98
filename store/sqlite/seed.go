package sqlite

import (
	"context"
	"fmt"
)

// SeedDemo loads a small Chinook-flavored dataset: a handful of artists,
// albums, genres and tracks, three customers and the invoice history the
// examples query against. Safe to call repeatedly.
func (s *Store) SeedDemo(ctx context.Context) error {
	seed := `
	INSERT OR IGNORE INTO Artist (ArtistId, Name) VALUES
		(1, 'AC/DC'),
		(2, 'Accept'),
		(3, 'Metallica'),
		(4, 'Antônio Carlos Jobim'),
		(5, 'Miles Davis');

	INSERT OR IGNORE INTO Album (AlbumId, Title, ArtistId) VALUES
		(1, 'For Those About To Rock We Salute You', 1),
		(2, 'Balls to the Wall', 2),
		(3, 'Restless and Wild', 2),
		(4, 'Master Of Puppets', 3),
		(5, 'Warner 25 Anos', 4),
		(6, 'Kind Of Blue', 5);

	INSERT OR IGNORE INTO Genre (GenreId, Name) VALUES
		(1, 'Rock'),
		(2, 'Jazz'),
		(3, 'Metal'),
		(4, 'Alternative & Punk'),
		(5, 'Classical');

	INSERT OR IGNORE INTO Track (TrackId, Name, AlbumId, GenreId, UnitPrice) VALUES
		(1, 'For Those About To Rock (We Salute You)', 1, 1, 0.99),
		(2, 'Put The Finger On You', 1, 1, 0.99),
		(3, 'Let''s Get It Up', 1, 1, 0.99),
		(4, 'Inject The Venom', 1, 1, 0.99),
		(5, 'Snowballed', 1, 1, 0.99),
		(6, 'Evil Walks', 1, 1, 0.99),
		(7, 'Balls to the Wall', 2, 1, 0.99),
		(8, 'Fast As a Shark', 3, 1, 0.99),
		(9, 'Restless and Wild', 3, 1, 0.99),
		(10, 'Princess of the Dawn', 3, 1, 0.99),
		(11, 'Battery', 4, 3, 0.99),
		(12, 'Master Of Puppets', 4, 3, 0.99),
		(13, 'Disposable Heroes', 4, 3, 0.99),
		(14, 'Desafinado', 5, 2, 0.99),
		(15, 'Garota De Ipanema', 5, 2, 0.99),
		(16, 'Samba De Uma Nota Só (One Note Samba)', 5, 2, 0.99),
		(17, 'So What', 6, 2, 0.99),
		(18, 'Freddie Freeloader', 6, 2, 0.99),
		(19, 'Blue In Green', 6, 2, 0.99),
		(20, 'All Blues', 6, 2, 0.99);

	INSERT OR IGNORE INTO Customer (CustomerId, FirstName, LastName, Country, Email) VALUES
		(1, 'Luís', 'Gonçalves', 'Brazil', 'luisg@embraer.com.br'),
		(3, 'François', 'Tremblay', 'Canada', 'ftremblay@gmail.com'),
		(12, 'Roberto', 'Almeida', 'Brazil', 'roberto.almeida@riotur.gov.br');

	INSERT OR IGNORE INTO Invoice (InvoiceId, CustomerId, InvoiceDate, Total) VALUES
		(1, 1, '2024-01-08 00:00:00', 3.96),
		(2, 3, '2024-01-19 00:00:00', 0.99),
		(3, 12, '2024-02-02 00:00:00', 1.98),
		(4, 12, '2024-03-11 00:00:00', 3.96),
		(5, 12, '2024-04-23 00:00:00', 5.94),
		(6, 12, '2024-06-05 00:00:00', 0.99),
		(7, 12, '2024-07-17 00:00:00', 1.98),
		(8, 12, '2024-09-28 00:00:00', 8.91),
		(9, 12, '2024-11-30 00:00:00', 13.86);

	INSERT OR IGNORE INTO InvoiceLine (InvoiceLineId, InvoiceId, TrackId, UnitPrice, Quantity) VALUES
		(1, 1, 1, 0.99, 2),
		(2, 1, 7, 0.99, 2),
		(3, 2, 14, 0.99, 1),
		(4, 3, 11, 0.99, 2),
		(5, 4, 17, 0.99, 4),
		(6, 5, 12, 0.99, 6),
		(7, 6, 2, 0.99, 1),
		(8, 7, 15, 0.99, 2),
		(9, 8, 18, 0.99, 9),
		(10, 9, 20, 0.99, 14);
	`

	if _, err := s.db.ExecContext(ctx, seed); err != nil {
		return fmt.Errorf("sqlite: seed demo data: %w", err)
	}

	return nil
}
