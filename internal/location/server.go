package location

import (
	"io"

	"github.com/google/uuid"

	"github.com/example/bloodlink/internal/donor/domain"
)

// Server implements the DonorLocationServer interface.
type Server struct {
	observer *StreamObserver
}

// NewServer constructs a server.
func NewServer(observer *StreamObserver) *Server {
	return &Server{observer: observer}
}

// StreamPosition ingests donor positions and updates the observer.
// Malformed donor ids are skipped without tearing down the stream.
func (s *Server) StreamPosition(stream DonorLocation_StreamPositionServer) error {
	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			return stream.SendAndClose(&Ack{})
		}
		if err != nil {
			return err
		}
		donorID, err := uuid.Parse(msg.DonorId)
		if err != nil {
			continue
		}
		s.observer.Update(stream.Context(), donorID, domain.GeoPoint{Lat: msg.Lat, Lng: msg.Lng}, msg.Accuracy)
	}
}
