package location

import "google.golang.org/grpc"

// DonorPosition represents a streaming update from a donor's device.
type DonorPosition struct {
	DonorId  string
	Lat      float64
	Lng      float64
	Accuracy float64
	Ts       int64
}

// Ack is returned when the stream closes.
type Ack struct{}

// DonorLocationServer defines the gRPC contract.
type DonorLocationServer interface {
	StreamPosition(DonorLocation_StreamPositionServer) error
}

// RegisterDonorLocationServer registers the service implementation.
func RegisterDonorLocationServer(s *grpc.Server, srv DonorLocationServer) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: "location.DonorLocation",
		HandlerType: (*DonorLocationServer)(nil),
		Streams: []grpc.StreamDesc{{
			StreamName:    "StreamPosition",
			Handler:       _DonorLocation_StreamPosition_Handler,
			ServerStreams: true,
			ClientStreams: true,
		}},
	}, srv)
}

// DonorLocation_StreamPositionServer defines the bidi stream interface.
type DonorLocation_StreamPositionServer interface {
	grpc.ServerStream
	SendAndClose(*Ack) error
	Recv() (*DonorPosition, error)
}

func _DonorLocation_StreamPosition_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(DonorLocationServer).StreamPosition(&positionStreamServer{ServerStream: stream})
}

type positionStreamServer struct {
	grpc.ServerStream
}

func (s *positionStreamServer) SendAndClose(*Ack) error { return nil }

func (s *positionStreamServer) Recv() (*DonorPosition, error) {
	msg := new(DonorPosition)
	if err := s.ServerStream.RecvMsg(msg); err != nil {
		return nil, err
	}
	return msg, nil
}
