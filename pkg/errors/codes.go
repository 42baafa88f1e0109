package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// OK represents a successful operation.
var OK = Register(&Errno{
	Code:      0,
	HTTP:      http.StatusOK,
	GRPCCode:  codes.OK,
	MessageEN: "Success",
	MessageZH: "成功",
})

// Common errors shared by all modules.
var (
	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryRequest, 0),
		HTTP:      http.StatusBadRequest,
		GRPCCode:  codes.InvalidArgument,
		MessageEN: "Bad request",
		MessageZH: "请求错误",
	})

	// ErrInternal indicates an internal server error. Its public message is
	// deliberately generic; the cause is only logged server side.
	ErrInternal = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryInternal, 0),
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.Internal,
		MessageEN: "Internal server error",
		MessageZH: "服务器内部错误",
	})

	// ErrPanic indicates a recovered panic.
	ErrPanic = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryInternal, 1),
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.Internal,
		MessageEN: "Internal server error",
		MessageZH: "服务器内部错误",
	})

	// ErrTimeout indicates an operation timeout.
	ErrTimeout = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryTimeout, 0),
		HTTP:      http.StatusGatewayTimeout,
		GRPCCode:  codes.DeadlineExceeded,
		MessageEN: "Operation timeout",
		MessageZH: "操作超时",
	})
)

// Document question answering errors.
var (
	// ErrValidation indicates invalid request input (empty question,
	// oversized question, bad chunking parameters).
	ErrValidation = Register(New(MakeCode(ServiceDocQA, CategoryRequest, 1), http.StatusBadRequest, codes.InvalidArgument, "Invalid request parameters", "请求参数无效"))

	// ErrUnsupportedFormat indicates a document format no loader handles.
	ErrUnsupportedFormat = Register(New(MakeCode(ServiceDocQA, CategoryRequest, 2), http.StatusBadRequest, codes.InvalidArgument, "Unsupported document format", "不支持的文档格式"))

	// ErrProvider indicates an embedding or generation provider failure.
	// Public message stays generic regardless of the cause.
	ErrProvider = Register(New(MakeCode(ServiceDocQA, CategoryInternal, 1), http.StatusInternalServerError, codes.Internal, "Internal server error", "服务器内部错误"))

	// ErrIndex indicates a vector index operation failure.
	ErrIndex = Register(New(MakeCode(ServiceDocQA, CategoryInternal, 2), http.StatusInternalServerError, codes.Internal, "Internal server error", "服务器内部错误"))

	// ErrCollectionNotReady indicates the collection was dropped and not
	// re-created; add and search fail until ensure runs again.
	ErrCollectionNotReady = Register(New(MakeCode(ServiceDocQA, CategoryInternal, 3), http.StatusInternalServerError, codes.FailedPrecondition, "Collection is not ready", "集合尚未就绪"))

	// ErrEvaluation classifies evaluation failures internally. It is never
	// written to an HTTP response; evaluation errors ride inside scores.
	ErrEvaluation = Register(New(MakeCode(ServiceDocQA, CategoryInternal, 4), http.StatusInternalServerError, codes.Internal, "Evaluation failed", "评估失败"))

	// ErrLoadFailed indicates a document could not be read or parsed.
	ErrLoadFailed = Register(New(MakeCode(ServiceDocQA, CategoryInternal, 5), http.StatusInternalServerError, codes.Internal, "Document processing failed", "文档处理失败"))

	// ErrQueryTimeout indicates the query deadline elapsed.
	ErrQueryTimeout = Register(New(MakeCode(ServiceDocQA, CategoryTimeout, 1), http.StatusGatewayTimeout, codes.DeadlineExceeded, "Query timeout", "查询超时"))

	// ErrCache indicates a query cache failure.
	ErrCache = Register(New(MakeCode(ServiceDocQA, CategoryCache, 1), http.StatusInternalServerError, codes.Internal, "Cache operation failed", "缓存操作失败"))
)
