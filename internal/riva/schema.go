package riva

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

const (
	protoPackage    = "nvidia.riva.asr"
	serviceName     = protoPackage + ".RivaSpeechRecognition"
	streamingMethod = "/" + serviceName + "/StreamingRecognize"

	encodingLinearPCM = 1
)

// messageSet holds descriptors for the subset of riva_asr.proto used by the
// streaming recognizer.
type messageSet struct {
	request           protoreflect.MessageDescriptor
	streamingConfig   protoreflect.MessageDescriptor
	recognitionConfig protoreflect.MessageDescriptor
	speechContext     protoreflect.MessageDescriptor
	response          protoreflect.MessageDescriptor
	result            protoreflect.MessageDescriptor
	alternative       protoreflect.MessageDescriptor
}

var schema = mustBuildSchema()

func mustBuildSchema() messageSet {
	set, err := buildSchema()
	if err != nil {
		panic(fmt.Sprintf("riva schema: %v", err))
	}
	return set
}

func buildSchema() (messageSet, error) {
	typeName := func(name string) *string { return proto.String("." + protoPackage + "." + name) }

	file := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("riva/proto/riva_asr.proto"),
		Package: proto.String(protoPackage),
		Syntax:  proto.String("proto3"),
		EnumType: []*descriptorpb.EnumDescriptorProto{{
			Name: proto.String("AudioEncoding"),
			Value: []*descriptorpb.EnumValueDescriptorProto{
				{Name: proto.String("ENCODING_UNSPECIFIED"), Number: proto.Int32(0)},
				{Name: proto.String("LINEAR_PCM"), Number: proto.Int32(encodingLinearPCM)},
			},
		}},
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("RecognitionConfig"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{Name: proto.String("encoding"), Number: proto.Int32(1), Label: optional(), Type: descriptorpb.FieldDescriptorProto_TYPE_ENUM.Enum(), TypeName: typeName("AudioEncoding")},
					scalar("sample_rate_hertz", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32),
					scalar("language_code", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					scalar("max_alternatives", 4, descriptorpb.FieldDescriptorProto_TYPE_INT32),
					scalar("profanity_filter", 5, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
					{Name: proto.String("speech_contexts"), Number: proto.Int32(6), Label: repeated(), Type: message(), TypeName: typeName("SpeechContext")},
					scalar("audio_channel_count", 7, descriptorpb.FieldDescriptorProto_TYPE_INT32),
					scalar("enable_automatic_punctuation", 11, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
					scalar("model", 13, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				},
			},
			{
				Name: proto.String("SpeechContext"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{Name: proto.String("phrases"), Number: proto.Int32(1), Label: repeated(), Type: descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum()},
					scalar("boost", 4, descriptorpb.FieldDescriptorProto_TYPE_FLOAT),
				},
			},
			{
				Name: proto.String("StreamingRecognitionConfig"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{Name: proto.String("config"), Number: proto.Int32(1), Label: optional(), Type: message(), TypeName: typeName("RecognitionConfig")},
					scalar("interim_results", 2, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
				},
			},
			{
				Name: proto.String("StreamingRecognizeRequest"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{Name: proto.String("streaming_config"), Number: proto.Int32(1), Label: optional(), Type: message(), TypeName: typeName("StreamingRecognitionConfig"), OneofIndex: proto.Int32(0)},
					{Name: proto.String("audio_content"), Number: proto.Int32(2), Label: optional(), Type: descriptorpb.FieldDescriptorProto_TYPE_BYTES.Enum(), OneofIndex: proto.Int32(0)},
				},
				OneofDecl: []*descriptorpb.OneofDescriptorProto{{Name: proto.String("streaming_request")}},
			},
			{
				Name: proto.String("StreamingRecognizeResponse"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{Name: proto.String("results"), Number: proto.Int32(1), Label: repeated(), Type: message(), TypeName: typeName("StreamingRecognitionResult")},
				},
			},
			{
				Name: proto.String("StreamingRecognitionResult"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{Name: proto.String("alternatives"), Number: proto.Int32(1), Label: repeated(), Type: message(), TypeName: typeName("SpeechRecognitionAlternative")},
					scalar("is_final", 2, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
					scalar("stability", 3, descriptorpb.FieldDescriptorProto_TYPE_FLOAT),
					scalar("channel_tag", 5, descriptorpb.FieldDescriptorProto_TYPE_INT32),
					scalar("audio_processed", 6, descriptorpb.FieldDescriptorProto_TYPE_FLOAT),
				},
			},
			{
				Name: proto.String("SpeechRecognitionAlternative"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalar("transcript", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					scalar("confidence", 2, descriptorpb.FieldDescriptorProto_TYPE_FLOAT),
				},
			},
		},
	}

	fd, err := protodesc.NewFile(file, new(protoregistry.Files))
	if err != nil {
		return messageSet{}, err
	}
	msgs := fd.Messages()
	return messageSet{
		recognitionConfig: msgs.ByName("RecognitionConfig"),
		speechContext:     msgs.ByName("SpeechContext"),
		streamingConfig:   msgs.ByName("StreamingRecognitionConfig"),
		request:           msgs.ByName("StreamingRecognizeRequest"),
		response:          msgs.ByName("StreamingRecognizeResponse"),
		result:            msgs.ByName("StreamingRecognitionResult"),
		alternative:       msgs.ByName("SpeechRecognitionAlternative"),
	}, nil
}

func scalar(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  optional(),
		Type:   typ.Enum(),
	}
}

func optional() *descriptorpb.FieldDescriptorProto_Label {
	return descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()
}

func repeated() *descriptorpb.FieldDescriptorProto_Label {
	return descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
}

func message() *descriptorpb.FieldDescriptorProto_Type {
	return descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum()
}

func field(md protoreflect.MessageDescriptor, name protoreflect.Name) protoreflect.FieldDescriptor {
	fd := md.Fields().ByName(name)
	if fd == nil {
		panic(fmt.Sprintf("riva schema: %s has no field %s", md.FullName(), name))
	}
	return fd
}
