//go:build cronet

package cronet

/*
#include <stdbool.h>
#include <stdlib.h>
#include <cronet_c.h>
*/
import "C"

import (
	"unsafe"

	"github.com/stealthrocket/cloak/internal/netengine"
)

type request struct {
	ptr C.Cronet_UrlRequestPtr
}

func (r *request) InitWithParams(e netengine.Engine, url string, params netengine.RequestParams, cb netengine.Callback, x netengine.Executor) netengine.Result {
	eng, ok := e.(*engine)
	if !ok || eng == nil {
		return netengine.ResultNullPointerEngine
	}
	c, ok := cb.(*callback)
	if !ok || c == nil {
		return netengine.ResultNullPointerCallback
	}
	exec, ok := x.(*executor)
	if !ok || exec == nil {
		return netengine.ResultNullPointerExecutor
	}

	p := C.Cronet_UrlRequestParams_Create()
	defer C.Cronet_UrlRequestParams_Destroy(p)

	method := C.CString(params.Method)
	defer C.free(unsafe.Pointer(method))
	C.Cronet_UrlRequestParams_http_method_set(p, method)

	for _, h := range params.Headers {
		addHeader(p, h)
	}

	if params.UploadDataProvider != nil {
		up, ok := params.UploadDataProvider.(*provider)
		if !ok {
			return netengine.ResultIllegalArgument
		}
		upExec, ok := params.UploadDataProviderExecutor.(*executor)
		if !ok {
			return netengine.ResultNullPointerExecutor
		}
		C.Cronet_UrlRequestParams_upload_data_provider_set(p, up.ptr)
		C.Cronet_UrlRequestParams_upload_data_provider_executor_set(p, upExec.ptr)
	}

	u := C.CString(url)
	defer C.free(unsafe.Pointer(u))
	return netengine.Result(C.Cronet_UrlRequest_InitWithParams(r.ptr, eng.ptr, u, p, c.ptr, exec.ptr))
}

func addHeader(p C.Cronet_UrlRequestParamsPtr, h netengine.Header) {
	header := C.Cronet_HttpHeader_Create()
	defer C.Cronet_HttpHeader_Destroy(header)

	name := C.CString(h.Name)
	defer C.free(unsafe.Pointer(name))
	value := C.CString(h.Value)
	defer C.free(unsafe.Pointer(value))

	C.Cronet_HttpHeader_name_set(header, name)
	C.Cronet_HttpHeader_value_set(header, value)
	C.Cronet_UrlRequestParams_request_headers_add(p, header)
}

func (r *request) Start() netengine.Result {
	return netengine.Result(C.Cronet_UrlRequest_Start(r.ptr))
}

func (r *request) FollowRedirect() netengine.Result {
	return netengine.Result(C.Cronet_UrlRequest_FollowRedirect(r.ptr))
}

func (r *request) Read(b netengine.Buffer) netengine.Result {
	buf, ok := b.(*buffer)
	if !ok {
		return netengine.ResultIllegalArgument
	}
	return netengine.Result(C.Cronet_UrlRequest_Read(r.ptr, buf.ptr))
}

func (r *request) Cancel() {
	C.Cronet_UrlRequest_Cancel(r.ptr)
}

func (r *request) IsDone() bool {
	return bool(C.Cronet_UrlRequest_IsDone(r.ptr))
}

func (r *request) Destroy() {
	requests.delete(r.ptr)
	C.Cronet_UrlRequest_Destroy(r.ptr)
}

func lookupRequest(ptr C.Cronet_UrlRequestPtr) netengine.Request {
	if r, ok := requests.load(ptr); ok {
		return r
	}
	return &request{ptr: ptr}
}

func responseInfo(ptr C.Cronet_UrlResponseInfoPtr) *netengine.ResponseInfo {
	if ptr == nil {
		return nil
	}
	info := &netengine.ResponseInfo{
		URL:                C.GoString(C.Cronet_UrlResponseInfo_url_get(ptr)),
		StatusCode:         int(C.Cronet_UrlResponseInfo_http_status_code_get(ptr)),
		StatusText:         C.GoString(C.Cronet_UrlResponseInfo_http_status_text_get(ptr)),
		NegotiatedProtocol: C.GoString(C.Cronet_UrlResponseInfo_negotiated_protocol_get(ptr)),
		WasCached:          bool(C.Cronet_UrlResponseInfo_was_cached_get(ptr)),
		ReceivedByteCount:  int64(C.Cronet_UrlResponseInfo_received_byte_count_get(ptr)),
	}

	n := C.Cronet_UrlResponseInfo_url_chain_size(ptr)
	info.URLChain = make([]string, 0, int(n))
	for i := C.uint32_t(0); i < n; i++ {
		info.URLChain = append(info.URLChain, C.GoString(C.Cronet_UrlResponseInfo_url_chain_at(ptr, i)))
	}

	n = C.Cronet_UrlResponseInfo_all_headers_list_size(ptr)
	info.Headers = make([]netengine.Header, 0, int(n))
	for i := C.uint32_t(0); i < n; i++ {
		h := C.Cronet_UrlResponseInfo_all_headers_list_at(ptr, i)
		info.Headers = append(info.Headers, netengine.Header{
			Name:  C.GoString(C.Cronet_HttpHeader_name_get(h)),
			Value: C.GoString(C.Cronet_HttpHeader_value_get(h)),
		})
	}
	return info
}

func requestError(ptr C.Cronet_ErrorPtr) *netengine.Error {
	if ptr == nil {
		return nil
	}
	return &netengine.Error{
		Code:         netengine.ErrorCode(C.Cronet_Error_error_code_get(ptr)),
		Message:      C.GoString(C.Cronet_Error_message_get(ptr)),
		InternalCode: int(C.Cronet_Error_internal_error_code_get(ptr)),
	}
}
