package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"torrentplayer/internal/domain"
)

// Repository persists torrent summaries, one document per torrent key.
type Repository struct {
	collection *mongo.Collection
}

type audioDoc struct {
	Title       string  `bson:"title,omitempty"`
	Artist      string  `bson:"artist,omitempty"`
	Album       string  `bson:"album,omitempty"`
	Genre       string  `bson:"genre,omitempty"`
	Year        string  `bson:"year,omitempty"`
	TrackNumber string  `bson:"trackNumber,omitempty"`
	Codec       string  `bson:"codec,omitempty"`
	Duration    float64 `bson:"duration,omitempty"`
	Bitrate     int64   `bson:"bitrate,omitempty"`
}

type fileDoc struct {
	Name             string    `bson:"name"`
	Path             string    `bson:"path"`
	Length           int64     `bson:"length"`
	CurrentTime      float64   `bson:"currentTime,omitempty"`
	Duration         float64   `bson:"duration,omitempty"`
	SelectedSubtitle string    `bson:"selectedSubtitle,omitempty"`
	Audio            *audioDoc `bson:"audio,omitempty"`
}

type summaryDoc struct {
	ID                   string    `bson:"_id"`
	InfoHash             string    `bson:"infoHash"`
	Magnet               string    `bson:"magnet"`
	Torrent              string    `bson:"torrent"`
	DisplayName          string    `bson:"displayName,omitempty"`
	Name                 string    `bson:"name"`
	Path                 string    `bson:"path"`
	Status               string    `bson:"status"`
	Files                []fileDoc `bson:"files"`
	Selections           []bool    `bson:"selections,omitempty"`
	DefaultPlayFileIndex *int      `bson:"defaultPlayFileIndex,omitempty"`
	TorrentFileName      string    `bson:"torrentFileName,omitempty"`
	PosterFileName       string    `bson:"posterFileName,omitempty"`
	CreatedAt            int64     `bson:"createdAt"`
	UpdatedAt            int64     `bson:"updatedAt"`
}

func NewRepository(client *mongo.Client, dbName, collectionName string) *Repository {
	return &Repository{collection: client.Database(dbName).Collection(collectionName)}
}

func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (r *Repository) EnsureIndexes(ctx context.Context) error {
	if r == nil || r.collection == nil {
		return nil
	}
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "infoHash", Value: 1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

// Save inserts or replaces the summary stored under its key.
func (r *Repository) Save(ctx context.Context, s domain.TorrentSummary) error {
	doc := toDoc(s, time.Now().UTC())
	_, err := r.collection.ReplaceOne(
		ctx,
		bson.M{"_id": doc.ID},
		doc,
		options.Replace().SetUpsert(true),
	)
	return err
}

// List returns every stored summary, newest first.
func (r *Repository) List(ctx context.Context) ([]domain.TorrentSummary, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []summaryDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return fromDocs(docs), nil
}

// Delete removes the summary. Deleting a missing key is not an error.
func (r *Repository) Delete(ctx context.Context, key domain.TorrentKey) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": string(key)})
	return err
}

func toDoc(s domain.TorrentSummary, now time.Time) summaryDoc {
	files := make([]fileDoc, 0, len(s.Files))
	for _, f := range s.Files {
		fd := fileDoc{
			Name:             f.Name,
			Path:             f.Path,
			Length:           f.Length,
			CurrentTime:      f.CurrentTime,
			Duration:         f.Duration,
			SelectedSubtitle: f.SelectedSubtitle,
		}
		if a := f.AudioInfo; a != nil {
			fd.Audio = &audioDoc{
				Title:       a.Title,
				Artist:      a.Artist,
				Album:       a.Album,
				Genre:       a.Genre,
				Year:        a.Year,
				TrackNumber: a.TrackNumber,
				Codec:       a.Codec,
				Duration:    a.Duration,
				Bitrate:     a.Bitrate,
			}
		}
		files = append(files, fd)
	}

	return summaryDoc{
		ID:                   string(s.Key),
		InfoHash:             string(s.InfoHash),
		Magnet:               s.Source.Magnet,
		Torrent:              s.Source.Torrent,
		DisplayName:          s.DisplayName,
		Name:                 s.Name,
		Path:                 s.Path,
		Status:               string(s.Status),
		Files:                files,
		Selections:           s.Selections,
		DefaultPlayFileIndex: s.DefaultPlayFileIndex,
		TorrentFileName:      s.TorrentFileName,
		PosterFileName:       s.PosterFileName,
		CreatedAt:            s.CreatedAt.Unix(),
		UpdatedAt:            now.Unix(),
	}
}

func fromDoc(doc summaryDoc) domain.TorrentSummary {
	files := make([]domain.FileSummary, 0, len(doc.Files))
	for _, f := range doc.Files {
		fs := domain.FileSummary{
			Name:             f.Name,
			Path:             f.Path,
			Length:           f.Length,
			CurrentTime:      f.CurrentTime,
			Duration:         f.Duration,
			SelectedSubtitle: f.SelectedSubtitle,
		}
		if a := f.Audio; a != nil {
			fs.AudioInfo = &domain.AudioInfo{
				Title:       a.Title,
				Artist:      a.Artist,
				Album:       a.Album,
				Genre:       a.Genre,
				Year:        a.Year,
				TrackNumber: a.TrackNumber,
				Codec:       a.Codec,
				Duration:    a.Duration,
				Bitrate:     a.Bitrate,
			}
		}
		files = append(files, fs)
	}

	return domain.TorrentSummary{
		Key:                  domain.TorrentKey(doc.ID),
		InfoHash:             domain.InfoHash(doc.InfoHash),
		Source:               domain.TorrentSource{Magnet: doc.Magnet, Torrent: doc.Torrent},
		DisplayName:          doc.DisplayName,
		Name:                 doc.Name,
		Path:                 doc.Path,
		Status:               domain.TorrentStatus(doc.Status),
		Files:                files,
		Selections:           doc.Selections,
		DefaultPlayFileIndex: doc.DefaultPlayFileIndex,
		TorrentFileName:      doc.TorrentFileName,
		PosterFileName:       doc.PosterFileName,
		// Artifacts that were already produced must not be requested again.
		DescriptorRequested: doc.TorrentFileName != "",
		PosterRequested:     doc.PosterFileName != "",
		CreatedAt:           timeFromUnix(doc.CreatedAt),
	}
}

func fromDocs(docs []summaryDoc) []domain.TorrentSummary {
	out := make([]domain.TorrentSummary, 0, len(docs))
	for _, doc := range docs {
		out = append(out, fromDoc(doc))
	}
	return out
}

func timeFromUnix(value int64) time.Time {
	return time.Unix(value, 0).UTC()
}
